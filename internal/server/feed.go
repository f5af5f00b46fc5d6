package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"afl-tracker/internal/config"
	"afl-tracker/internal/constants"
	"afl-tracker/internal/domain"
	"afl-tracker/internal/ledger"
	"afl-tracker/internal/service"
	"afl-tracker/internal/session"
	"afl-tracker/internal/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const FeedPattern = "GET /ws/matches/{id}"

const (
	MessageActions = "actions"
	MessageState   = "state"
	MessageEvent   = "event"
)

type FeedMessage struct {
	Type    string         `json:"type"`
	MatchID string         `json:"matchId"`
	Actions []Action       `json:"actions,omitempty"`
	State   *session.State `json:"state,omitempty"`
	Event   *session.Event `json:"event,omitempty"`
}

// FeedHandler streams a match's action list over a websocket. With
// ?quarter= naming an open session it also forwards that session's events.
type FeedHandler struct {
	store      store.Store
	matchSvc   *service.MatchService
	sessionSvc *service.SessionService
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

func NewFeedHandler(cfg *config.Config, st store.Store, matchSvc *service.MatchService, sessionSvc *service.SessionService, logger zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		store:      st,
		matchSvc:   matchSvc,
		sessionSvc: sessionSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.CORSOrigins, logger),
		},
		logger: logger,
	}
}

// checkOrigin applies the RPC handler's CORS origins to websocket upgrades.
// Requests without an Origin header and same-host requests always pass.
func checkOrigin(allowed []string, logger zerolog.Logger) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		logger.Warn().Str("origin", origin).Str("path", r.URL.Path).Msg("websocket origin rejected")
		return false
	}
}

type feedClient struct {
	conn   *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc
	logger zerolog.Logger
}

func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	logger := h.logger.With().Str("match_id", matchID).Logger()

	if _, err := h.matchSvc.GetMatch(r.Context(), matchID); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	var (
		filter store.Filter
		sess   *session.Session
	)
	if raw := r.URL.Query().Get("quarter"); raw != "" {
		q, err := domain.ParseQuarter(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if sess, err = h.sessionSvc.Get(matchID, q); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		filter.Quarter = q.String()
		logger = logger.With().Str("quarter", q.String()).Logger()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &feedClient{
		conn:   conn,
		send:   make(chan []byte, constants.FeedSendBuffer),
		cancel: cancel,
		logger: logger,
	}
	done := make(chan struct{})
	go c.readPump()
	go func() {
		c.writePump()
		close(done)
	}()

	logger.Info().Msg("feed connected")
	h.stream(ctx, c, matchID, filter, sess)
	close(c.send)
	<-done
	logger.Info().Msg("feed disconnected")
}

func (h *FeedHandler) stream(ctx context.Context, c *feedClient, matchID string, filter store.Filter, sess *session.Session) {
	updates, err := h.store.SubscribeActions(ctx, matchID, filter)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to subscribe to actions")
		return
	}

	var events <-chan session.Event
	if sess != nil {
		ch, unsubscribe := sess.Subscribe()
		defer unsubscribe()
		events = ch

		state := sess.Snapshot()
		if !c.enqueue(FeedMessage{Type: MessageState, MatchID: matchID, State: &state}) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case records, ok := <-updates:
			if !ok {
				return
			}
			actions, skipped := ledger.Decode(records)
			if len(skipped) > 0 {
				c.logger.Warn().Int("skipped", len(skipped)).Msg("skipping malformed action records")
			}
			if !c.enqueue(FeedMessage{Type: MessageActions, MatchID: matchID, Actions: toActions(actions)}) {
				return
			}
		case ev, ok := <-events:
			if !ok {
				// session closed; keep streaming actions
				events = nil
				continue
			}
			if !c.enqueue(FeedMessage{Type: MessageEvent, MatchID: matchID, Event: &ev}) {
				return
			}
		}
	}
}

// enqueue hands msg to the writer. A client whose buffer is full is
// dropped.
func (c *feedClient) enqueue(msg FeedMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msg.Type).Msg("failed to marshal feed message")
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn().Msg("feed client too slow, disconnecting")
		c.cancel()
		return false
	}
}

// readPump discards client messages; it only tracks pongs and notices the
// connection going away.
func (c *feedClient) readPump() {
	defer c.cancel()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(constants.FeedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(constants.FeedPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("feed read failed")
			}
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(constants.FeedPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.FeedWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.FeedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}
