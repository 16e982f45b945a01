// Package rest talks to a PostgREST (Supabase) API exposing the three
// record tables.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/remote"
	"github.com/tidwall/gjson"
)

// Client holds the connection settings shared by the three endpoints.
type Client struct {
	baseURL string
	apiKey  string
	token   func() string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which has config.HTTPTimeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken sets the source of the user's bearer token. When it returns an
// empty string the API key is sent as the bearer instead.
func WithToken(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

// New validates baseURL and returns a client for it.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s: %q", config.ErrRemoteConfig, config.ErrProtocol, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s: %s", config.ErrRemoteConfig, config.ErrInvalidURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: config.HTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoints returns the three resources served by this client.
func (c *Client) Endpoints() remote.Endpoints {
	return remote.Endpoints{
		Profiles:   &Endpoint[remote.ProfileRecord]{client: c, table: config.TableProfiles},
		Milestones: &Endpoint[remote.MilestonesRecord]{client: c, table: config.TableMilestones},
		Selections: &Endpoint[remote.SelectionsRecord]{client: c, table: config.TableSelections},
	}
}

// Endpoint reads and upserts one table.
type Endpoint[T remote.Record] struct {
	client *Client
	table  string
}

// Fetch selects the user's row. PostgREST always answers with an array; an
// empty one means the user has no record.
func (e *Endpoint[T]) Fetch(ctx context.Context, userID string) (T, bool, error) {
	var rec T
	if userID == "" {
		return rec, false, remote.ErrUserIDEmpty
	}

	query := fmt.Sprintf(config.RESTQueryByUser, url.QueryEscape(userID))
	body, err := e.client.do(ctx, http.MethodGet, e.table, query, nil)
	if err != nil {
		return rec, false, fmt.Errorf("%s: %w", config.ErrRemoteFetch, err)
	}

	rows := gjson.ParseBytes(body)
	if !rows.IsArray() {
		return rec, false, fmt.Errorf("%s: %s: response is not an array", config.ErrRemoteFetch, config.ErrRemoteDecode)
	}
	first := rows.Get("0")
	if !first.Exists() {
		return rec, false, nil
	}
	if err := json.Unmarshal([]byte(first.Raw), &rec); err != nil {
		return rec, false, fmt.Errorf("%s: %w", config.ErrRemoteDecode, err)
	}
	return rec, true, nil
}

// Upsert posts rec with merge-duplicates resolution on user_id, which
// replaces any existing row for the same user.
func (e *Endpoint[T]) Upsert(ctx context.Context, rec T) error {
	if rec.Owner() == "" {
		return remote.ErrUserIDEmpty
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrRemoteUpsert, err)
	}
	if _, err := e.client.do(ctx, http.MethodPost, e.table, config.RESTQueryOnConflict, payload); err != nil {
		return fmt.Errorf("%s: %w", config.ErrRemoteUpsert, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, table, query string, payload []byte) ([]byte, error) {
	target := c.baseURL + config.RESTPathPrefix + "/" + table + "?" + query

	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompRemote),
		slog.String(config.LogKeyTable, table),
	)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrRemoteRequest, err)
	}

	bearer := c.apiKey
	if c.token != nil {
		if t := c.token(); t != "" {
			bearer = t
		}
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, config.MimeJSON)
	req.Header.Set(config.HeaderAPIKey, c.apiKey)
	if bearer != "" {
		req.Header.Set(config.HeaderAuthorization, config.BearerPrefix+bearer)
	}
	if payload != nil {
		req.Header.Set(config.HeaderContentType, config.MimeJSON)
		req.Header.Set(config.HeaderPrefer, config.RESTPreferUpsert)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxHTTPResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warn("Server returned error status",
			slog.Int(config.LogKeyStatus, resp.StatusCode),
		)
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("%s: %d: %s", config.ErrRemoteStatus, resp.StatusCode, msg)
	}

	log.Debug("Remote request completed",
		slog.String("method", method),
		slog.Int(config.LogKeyStatus, resp.StatusCode),
	)
	return body, nil
}
