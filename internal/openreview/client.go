package openreview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.openreview.net"
	DefaultPageSize = 1000

	profileBatchSize = 100
)

// Client reads groups, edges, notes and profiles from the platform API.
// It never issues writes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       AuthProvider
	limiter    *rate.Limiter
	retrier    *Retrier
	pageSize   int
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. to change the timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit caps the request rate. Zero or less disables limiting.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithRetry configures retries of transient failures.
func WithRetry(config *RetryConfig) Option {
	return func(c *Client) {
		c.retrier = NewRetrier(config)
	}
}

// WithPageSize sets the limit used when paging through edges and notes.
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// NewClient creates a client for the API at baseURL. A nil auth sends
// anonymous requests.
func NewClient(baseURL string, auth AuthProvider, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if auth == nil {
		auth = NoAuth{}
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		auth:     auth,
		limiter:  rate.NewLimiter(rate.Limit(5), 1),
		retrier:  NewRetrier(nil),
		pageSize: DefaultPageSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetGroup returns the group with the given id.
func (c *Client) GetGroup(ctx context.Context, id string) (*Group, error) {
	var resp struct {
		Groups []Group `json:"groups"`
	}

	query := url.Values{}
	query.Set("id", id)

	if err := c.get(ctx, "/groups", query, "group "+id, &resp); err != nil {
		return nil, err
	}

	if len(resp.Groups) == 0 {
		return nil, &NotFoundError{Resource: "group " + id}
	}

	return &resp.Groups[0], nil
}

// GetAllEdges returns every edge matching q, following pagination.
func (c *Client) GetAllEdges(ctx context.Context, q EdgeQuery) ([]Edge, error) {
	query := url.Values{}
	query.Set("invitation", q.Invitation)
	if q.Head != "" {
		query.Set("head", q.Head)
	}
	if q.Tail != "" {
		query.Set("tail", q.Tail)
	}

	var edges []Edge
	err := c.paginate(ctx, "/edges", query, "edges of "+q.Invitation, func(page []byte) (int, error) {
		var resp struct {
			Edges []Edge `json:"edges"`
		}
		if err := json.Unmarshal(page, &resp); err != nil {
			return 0, fmt.Errorf("failed to decode edges: %w", err)
		}
		edges = append(edges, resp.Edges...)
		return len(resp.Edges), nil
	})
	if err != nil {
		return nil, err
	}

	return edges, nil
}

// GetAllNotes returns every note matching q, following pagination.
func (c *Client) GetAllNotes(ctx context.Context, q NoteQuery) ([]Note, error) {
	query := url.Values{}
	query.Set("invitation", q.Invitation)
	if q.Details != "" {
		query.Set("details", q.Details)
	}

	var notes []Note
	err := c.paginate(ctx, "/notes", query, "notes of "+q.Invitation, func(page []byte) (int, error) {
		var resp struct {
			Notes []Note `json:"notes"`
		}
		if err := json.Unmarshal(page, &resp); err != nil {
			return 0, fmt.Errorf("failed to decode notes: %w", err)
		}
		notes = append(notes, resp.Notes...)
		return len(resp.Notes), nil
	})
	if err != nil {
		return nil, err
	}

	return notes, nil
}

// GetProfiles returns the profiles of the given ids. Unknown ids are
// silently absent from the result.
func (c *Client) GetProfiles(ctx context.Context, ids []string) ([]Profile, error) {
	var profiles []Profile

	for start := 0; start < len(ids); start += profileBatchSize {
		end := min(start+profileBatchSize, len(ids))

		query := url.Values{}
		query.Set("ids", strings.Join(ids[start:end], ","))

		var resp struct {
			Profiles []Profile `json:"profiles"`
		}
		if err := c.get(ctx, "/profiles", query, "profiles", &resp); err != nil {
			return nil, err
		}
		profiles = append(profiles, resp.Profiles...)
	}

	return profiles, nil
}

func (c *Client) paginate(ctx context.Context, path string, query url.Values, resource string, decode func([]byte) (int, error)) error {
	offset := 0
	for {
		page := url.Values{}
		for k, v := range query {
			page[k] = v
		}
		page.Set("offset", strconv.Itoa(offset))
		page.Set("limit", strconv.Itoa(c.pageSize))

		body, err := c.do(ctx, path, page, resource)
		if err != nil {
			return err
		}

		n, err := decode(body)
		if err != nil {
			return err
		}

		log.Debug().
			Str("path", path).
			Str("resource", resource).
			Int("offset", offset).
			Int("count", n).
			Msg("Fetched page")

		if n < c.pageSize {
			return nil
		}
		offset += n
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, resource string, out any) error {
	body, err := c.do(ctx, path, query, resource)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", resource, err)
	}

	return nil
}

// do sends one GET request with retries and returns the response body.
func (c *Client) do(ctx context.Context, path string, query url.Values, resource string) ([]byte, error) {
	var body []byte

	err := c.retrier.Execute(ctx, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		authHeader, err := c.auth.AuthHeader(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransientError{Err: fmt.Errorf("failed to send request: %w", err)}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
		}

		if err := classify(resp, data, resource); err != nil {
			return err
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// classify maps a non-2xx response onto the error taxonomy.
func classify(resp *http.Response, body []byte, resource string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	message := errorMessage(body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Status: resp.StatusCode, Message: message}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: resource, Message: message}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &TransientError{
			Err:        &APIError{Status: resp.StatusCode, Message: message},
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		return &APIError{Status: resp.StatusCode, Message: message}
	}
}

func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	return strings.TrimSpace(string(body))
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
