package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"afl-tracker/internal/domain"
	"afl-tracker/internal/store"

	"github.com/valyala/fasthttp"
)

var _ store.Store = (*Store)(nil)

type collectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type fieldRef struct {
	FieldPath string `json:"fieldPath"`
}

type fieldFilter struct {
	Field fieldRef `json:"field"`
	Op    string   `json:"op"`
	Value value    `json:"value"`
}

type compositeFilter struct {
	Op      string        `json:"op"`
	Filters []queryFilter `json:"filters"`
}

type queryFilter struct {
	FieldFilter     *fieldFilter     `json:"fieldFilter,omitempty"`
	CompositeFilter *compositeFilter `json:"compositeFilter,omitempty"`
}

type order struct {
	Field     fieldRef `json:"field"`
	Direction string   `json:"direction"`
}

type structuredQuery struct {
	From    []collectionSelector `json:"from"`
	Where   *queryFilter         `json:"where,omitempty"`
	OrderBy []order              `json:"orderBy"`
	Limit   int                  `json:"limit,omitempty"`
}

type runQueryRequest struct {
	StructuredQuery structuredQuery `json:"structuredQuery"`
}

type runQueryResult struct {
	Document *document `json:"document,omitempty"`
	ReadTime string    `json:"readTime,omitempty"`
}

func buildQuery(f store.Filter) structuredQuery {
	var filters []queryFilter
	eq := func(field string, v value) {
		filters = append(filters, queryFilter{FieldFilter: &fieldFilter{
			Field: fieldRef{FieldPath: field},
			Op:    "EQUAL",
			Value: v,
		}})
	}
	if f.Quarter != "" {
		eq("quarter", stringValue(f.Quarter))
	}
	if f.Team != "" {
		eq("team", stringValue(f.Team))
	}
	if f.PlayerNumber != nil {
		eq("playerNumber", integerValue(int64(*f.PlayerNumber)))
	}
	if f.ActionType != "" {
		eq("actionType", stringValue(f.ActionType))
	}

	direction := "ASCENDING"
	if f.Descending {
		direction = "DESCENDING"
	}
	q := structuredQuery{
		From: []collectionSelector{{CollectionID: "actions"}},
		OrderBy: []order{
			{Field: fieldRef{FieldPath: "timestamp"}, Direction: direction},
			{Field: fieldRef{FieldPath: "__name__"}, Direction: direction},
		},
		Limit: f.Limit,
	}
	switch len(filters) {
	case 0:
	case 1:
		q.Where = &filters[0]
	default:
		q.Where = &queryFilter{CompositeFilter: &compositeFilter{Op: "AND", Filters: filters}}
	}
	return q
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	doc, err := doRequest[document](ctx, s, fasthttp.MethodGet, s.matchURL(matchID), nil)
	if errors.Is(err, errNotFound) {
		return nil, &domain.StoreReadError{Op: "get match", Err: fmt.Errorf("match %s: %w", matchID, domain.ErrNotFound)}
	}
	if err != nil {
		return nil, &domain.StoreReadError{Op: "get match", Err: err}
	}
	return matchFromDocument(*doc, s.loc), nil
}

func (s *Store) CreateMatch(ctx context.Context, match domain.Match) (*domain.Match, error) {
	if match.CreatedAt.IsZero() {
		match.CreatedAt = s.clk.Now()
	}

	doc, err := doRequest[document](ctx, s, fasthttp.MethodPost, s.matchesURL(),
		document{Fields: matchFields(match)})
	if err != nil {
		return nil, &domain.StoreWriteError{Op: "create match", Err: err}
	}
	match.ID = docID(*doc)

	s.logger.Debug().Str("match_id", match.ID).Str("name", match.Name).Msg("match created")
	return &match, nil
}

// ListMatches orders by createdAt on the server. Firestore has no substring
// match, so the search runs over the fetched documents.
func (s *Store) ListMatches(ctx context.Context, query string, limit int) ([]domain.Match, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	q := structuredQuery{
		From: []collectionSelector{{CollectionID: "matches"}},
		OrderBy: []order{
			{Field: fieldRef{FieldPath: "createdAt"}, Direction: "DESCENDING"},
			{Field: fieldRef{FieldPath: "__name__"}, Direction: "ASCENDING"},
		},
	}
	if query == "" {
		q.Limit = limit
	}

	results, err := doRequest[[]runQueryResult](ctx, s, fasthttp.MethodPost, s.documents+":runQuery",
		runQueryRequest{StructuredQuery: q})
	if err != nil {
		return nil, &domain.StoreReadError{Op: "list matches", Err: err}
	}

	var matches []domain.Match
	for _, res := range *results {
		if res.Document == nil {
			continue
		}
		m := matchFromDocument(*res.Document, s.loc)
		if query != "" && !matchesQuery(m, query) {
			continue
		}
		matches = append(matches, *m)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func matchesQuery(m *domain.Match, query string) bool {
	for _, field := range []string{m.Name, m.Venue, m.Team1Name, m.Team2Name} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *Store) QueryActions(ctx context.Context, matchID string, filter store.Filter) ([]domain.ActionRecord, error) {
	results, err := doRequest[[]runQueryResult](ctx, s, fasthttp.MethodPost, s.matchURL(matchID)+":runQuery",
		runQueryRequest{StructuredQuery: buildQuery(filter)})
	if err != nil {
		return nil, &domain.StoreReadError{Op: "query actions", Err: err}
	}

	records := make([]domain.ActionRecord, 0, len(*results))
	for _, res := range *results {
		if res.Document == nil {
			continue
		}
		records = append(records, recordFromDocument(*res.Document, s.loc))
	}

	// Firestore has no insertion counter; result order already breaks
	// timestamp ties by document name.
	for i := range records {
		if filter.Descending {
			records[i].Seq = int64(len(records) - i)
		} else {
			records[i].Seq = int64(i + 1)
		}
	}
	return records, nil
}

func (s *Store) AppendAction(ctx context.Context, matchID string, record domain.ActionRecord) (string, error) {
	record.MatchID = matchID
	if record.Timestamp.IsZero() {
		record.Timestamp = s.clk.Now()
	}

	doc, err := doRequest[document](ctx, s, fasthttp.MethodPost, s.matchURL(matchID)+"/actions",
		document{Fields: recordFields(record, s.loc)})
	if err != nil {
		return "", &domain.StoreWriteError{Op: "append action", Err: err}
	}

	id := docID(*doc)
	s.logger.Debug().
		Str("match_id", matchID).
		Str("action_id", id).
		Str("action_type", record.ActionType).
		Str("team", record.Team).
		Msg("action appended")
	return id, nil
}

// SubscribeActions polls the query and sends the list whenever the set of
// action ids changes. The first list is sent unconditionally.
func (s *Store) SubscribeActions(ctx context.Context, matchID string, filter store.Filter) (<-chan []domain.ActionRecord, error) {
	initial, err := s.QueryActions(ctx, matchID, filter)
	if err != nil {
		return nil, err
	}

	out := make(chan []domain.ActionRecord, 1)
	out <- initial

	ticker := s.clk.NewTicker(s.pollInterval)
	go func() {
		defer close(out)
		defer ticker.Stop()

		seen := ids(initial)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}

			records, err := s.QueryActions(ctx, matchID, filter)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn().Err(err).Str("match_id", matchID).Msg("failed to poll actions")
				continue
			}
			current := ids(records)
			if slices.Equal(current, seen) {
				continue
			}
			seen = current

			select {
			case out <- records:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Debug().
		Str("match_id", matchID).
		Dur("poll_interval", s.pollInterval).
		Msg("action subscription opened")
	return out, nil
}

func ids(records []domain.ActionRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
