// Package rest implements store.Client against a PostgREST-compatible HTTP
// API (for example a hosted Supabase project).
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/atomshelf/atomshelf-server/internal/store"
)

const (
	basePath        = "/rest/v1/"
	headerRequestID = "X-Request-Id"
	defaultTimeout  = 15 * time.Second
)

// Options configures the REST client.
type Options struct {
	BaseURL string        // e.g. https://project.supabase.co
	APIKey  string        // Sent as apikey and bearer token
	Timeout time.Duration // Per-request timeout; 15s if zero
	Logger  *slog.Logger

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client is a store.Client speaking the PostgREST dialect.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ store.Client = (*Client)(nil)

// New builds a client. It does not contact the server; call Ping for that.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, store.ErrInvalidInput.WithMessage("rest base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, store.ErrInvalidInput.WithMessage("invalid rest base url").WithCause(err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rc := resty.New()
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	}
	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")+basePath).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		rc.SetHeader("apikey", opts.APIKey).SetAuthToken(opts.APIKey)
	}

	return &Client{http: rc, logger: logger}, nil
}

// Close is a no-op; resty holds no resources that need releasing.
func (c *Client) Close() error { return nil }

// Ping checks that the API answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Select(ctx, store.TableSettings, store.Query{Columns: []string{"key"}, Limit: 1})
	return err
}

// Select fetches rows matching q.
func (c *Client) Select(ctx context.Context, table store.Table, q store.Query) ([]store.Row, error) {
	params := filterParams(q.Filters)
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	}
	if q.Order != nil && q.Order.Column != "" {
		dir := "asc"
		if q.Order.Desc {
			dir = "desc"
		}
		params.Set("order", q.Order.Column+"."+dir+".nullsfirst")
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprint(q.Limit))
	}

	resp, err := c.request(ctx).SetQueryParamsFromValues(params).Get(string(table))
	if err := c.check(resp, err, "select", table); err != nil {
		return nil, err
	}
	return decodeRows(resp.Body())
}

// Insert creates rows and returns their stored representation.
func (c *Client) Insert(ctx context.Context, table store.Table, rows ...store.Row) ([]store.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	resp, err := c.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(rows).
		Post(string(table))
	if err := c.check(resp, err, "insert", table); err != nil {
		return nil, err
	}
	return decodeRows(resp.Body())
}

// Update patches every row matching filters.
func (c *Client) Update(ctx context.Context, table store.Table, patch store.Row, filters ...store.Filter) error {
	if len(filters) == 0 {
		return store.ErrInvalidInput.WithMessage("update without filter")
	}
	resp, err := c.request(ctx).
		SetHeader("Prefer", "return=minimal").
		SetQueryParamsFromValues(filterParams(filters)).
		SetBody(patch).
		Patch(string(table))
	return c.check(resp, err, "update", table)
}

// Delete removes every row matching filters.
func (c *Client) Delete(ctx context.Context, table store.Table, filters ...store.Filter) error {
	if len(filters) == 0 {
		return store.ErrInvalidInput.WithMessage("delete without filter")
	}
	resp, err := c.request(ctx).
		SetQueryParamsFromValues(filterParams(filters)).
		Delete(string(table))
	return c.check(resp, err, "delete", table)
}

// Upsert inserts row or merges it into the row sharing conflictKey.
func (c *Client) Upsert(ctx context.Context, table store.Table, row store.Row, conflictKey ...string) error {
	if len(conflictKey) == 0 {
		return store.ErrInvalidInput.WithMessage("upsert without conflict key")
	}
	resp, err := c.request(ctx).
		SetHeader("Prefer", "resolution=merge-duplicates,return=minimal").
		SetQueryParam("on_conflict", strings.Join(conflictKey, ",")).
		SetBody([]store.Row{row}).
		Post(string(table))
	return c.check(resp, err, "upsert", table)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader(headerRequestID, uuid.NewString())
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *Client) check(resp *resty.Response, err error, op string, table store.Table) error {
	if err != nil {
		c.logger.Warn("rest request failed", "op", op, "table", table, "error", err)
		return store.ErrUnavailable.WithMessage(fmt.Sprintf("%s %s", op, table)).WithCause(err)
	}
	if !resp.IsError() {
		return nil
	}

	var body apiError
	_ = json.Unmarshal(resp.Body(), &body)
	msg := body.Message
	if msg == "" {
		msg = resp.Status()
	}
	cause := fmt.Errorf("%s %s: %s", op, table, msg)

	c.logger.Warn("rest request rejected",
		"op", op,
		"table", table,
		"status", resp.StatusCode(),
		"code", body.Code,
		"request_id", resp.Request.Header.Get(headerRequestID),
	)

	switch {
	case resp.StatusCode() == http.StatusConflict || body.Code == "23505":
		return store.ErrConflict.WithMessage(msg).WithCause(cause)
	case resp.StatusCode() == http.StatusNotFound:
		return store.ErrNotFound.WithMessage(msg).WithCause(cause)
	case resp.StatusCode() < http.StatusInternalServerError:
		return store.ErrInvalidInput.WithMessage(msg).WithCause(cause)
	default:
		return store.ErrUnavailable.WithMessage(msg).WithCause(cause)
	}
}

func decodeRows(body []byte) ([]store.Row, error) {
	if len(body) == 0 {
		return []store.Row{}, nil
	}
	rows, err := store.UnmarshalRows(body)
	if err != nil {
		return nil, store.ErrUnavailable.WithMessage("malformed response").WithCause(err)
	}
	if rows == nil {
		rows = []store.Row{}
	}
	return rows, nil
}
