// Package firestore implements store.Store on the Firestore REST API.
//
// Documents follow the mobile app's schema: matches/{id} holds the match
// fields and matches/{id}/actions holds one document per recorded action.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"afl-tracker/internal/config"
	"afl-tracker/internal/constants"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const DefaultBaseURL = "https://firestore.googleapis.com"

var errNotFound = errors.New("document not found")

type Options struct {
	BaseURL      string
	Project      string
	Database     string
	Token        string
	PollInterval time.Duration
	// Location is the zone string timestamps are read and written in.
	// Defaults to UTC.
	Location *time.Location
	// Dial overrides how connections are made; tests use an in-memory listener.
	Dial fasthttp.DialFunc
}

type Store struct {
	documents    string
	token        string
	pollInterval time.Duration
	loc          *time.Location
	client       *fasthttp.Client
	clk          clockwork.Clock
	logger       zerolog.Logger
}

func New(opts Options, clk clockwork.Clock, logger zerolog.Logger) *Store {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	database := opts.Database
	if database == "" {
		database = "(default)"
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = constants.FirestorePollInterval
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Store{
		documents: fmt.Sprintf("%s/v1/projects/%s/databases/%s/documents",
			base, url.PathEscape(opts.Project), url.PathEscape(database)),
		token:        opts.Token,
		pollInterval: poll,
		loc:          loc,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.FirestoreTimeout,
			WriteTimeout:        constants.FirestoreTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
			Dial:                opts.Dial,
		},
		clk:    clk,
		logger: logger,
	}
}

func NewFromConfig(cfg *config.Config, clk clockwork.Clock, logger zerolog.Logger) *Store {
	return New(Options{
		BaseURL:      cfg.FirestoreBaseURL,
		Project:      cfg.FirestoreProject,
		Database:     cfg.FirestoreDatabase,
		Token:        cfg.FirestoreToken,
		PollInterval: cfg.FirestorePollInterval,
		Location:     cfg.FirestoreLocation,
	}, clk, logger)
}

func (s *Store) matchesURL() string {
	return s.documents + "/matches"
}

func (s *Store) matchURL(matchID string) string {
	return s.matchesURL() + "/" + url.PathEscape(matchID)
}

func doRequest[T any](ctx context.Context, s *Store, method, uri string, body any) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.FirestoreTimeout)
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		return nil, errNotFound
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("firestore error: %d %s", status, bytes.TrimSpace(resp.Body()))
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
