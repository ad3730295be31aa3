// Package catalogapi is the HTTP client for the external catalog REST API
// that owns players and enemies. The panel never stores catalog data; every
// list, history, create, update and delete goes through this client.
//
// All bodies are UTF-8 JSON. Images travel inside the JSON as data-URI
// strings, there is no multipart upload on this side.
package catalogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Kind is the API path segment of an entity type.
type Kind string

const (
	// Players is the player collection (/api/players/).
	Players Kind = "players"

	// Enemies is the enemy collection (/api/enemies/).
	Enemies Kind = "enemies"
)

// maxErrorBody caps how much of an error response is read when looking for
// the detail message.
const maxErrorBody = 64 * 1024

// Stats is the payload of GET /api/stats/.
type Stats struct {
	TotalPlayers int `json:"total_players"`
	TotalEnemies int `json:"total_enemies"`
}

// APIError is returned for any non-2xx response. Detail holds the server's
// {"detail": "..."} message when the body carried one as a string.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// DetailOr returns the server-supplied message of err when it is an
// *APIError carrying one, or fallback otherwise.
func DetailOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// Client talks to the catalog API. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the API rooted at baseURL (no trailing slash).
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a client using the given *http.Client.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

// List fetches the full collection (GET /api/{kind}/) into out, which must
// be a pointer to a slice. Order is whatever the server returns.
func (c *Client) List(ctx context.Context, kind Kind, out any) error {
	return c.do(ctx, http.MethodGet, collectionPath(kind), nil, out)
}

// History fetches deleted records (GET /api/{kind}/history/) into out.
func (c *Client) History(ctx context.Context, kind Kind, out any) error {
	return c.do(ctx, http.MethodGet, collectionPath(kind)+"history/", nil, out)
}

// Create sends a new record (POST /api/{kind}/). The created record in the
// response body is discarded.
func (c *Client) Create(ctx context.Context, kind Kind, payload any) error {
	return c.do(ctx, http.MethodPost, collectionPath(kind), payload, nil)
}

// Update replaces the record at the given collection position
// (PUT /api/{kind}/{index}).
func (c *Client) Update(ctx context.Context, kind Kind, index int, payload any) error {
	path := "/api/" + string(kind) + "/" + strconv.Itoa(index)
	return c.do(ctx, http.MethodPut, path, payload, nil)
}

// DeleteAll removes the entire collection (DELETE /api/{kind}/).
func (c *Client) DeleteAll(ctx context.Context, kind Kind) error {
	return c.do(ctx, http.MethodDelete, collectionPath(kind), nil, nil)
}

// Stats fetches the aggregate counts (GET /api/stats/).
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats/", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// collectionPath returns /api/{kind}/ with the trailing slash the API expects.
func collectionPath(kind Kind) string {
	return "/api/" + string(kind) + "/"
}

// do performs one request. A nil payload sends no body; a nil out discards
// the response body.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Detail: readDetail(resp.Body),
		}
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// readDetail extracts {"detail": "..."} from an error body. Non-string
// details (FastAPI validation arrays) and unparseable bodies yield "".
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil {
		return ""
	}
	return detail
}
