package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotRegistered is returned for authenticated calls made without a session
// token
var ErrNotRegistered = errors.New("no session token: run \"fairmatch player register\" first")

// Client talks to the fairmatch API on behalf of the configured player. The
// session token is read from the config on every call, so a token saved by
// Register is used straight away.
type Client struct {
	cfg    *Config
	http   *http.Client
	stream *http.Client
}

// NewClient creates a client for cfg.ServerURL
func NewClient(cfg *Config) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		stream: &http.Client{},
	}
}

// APIError is an error response from the API
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// IsAPIError reports whether err is an API error with the given code
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Health checks that the server is up
func (c *Client) Health(ctx context.Context) (*HealthResult, error) {
	var result HealthResult
	return &result, c.do(ctx, http.MethodGet, "/api/v1/health", false, nil, &result)
}

// Register creates a player and saves its session token. An empty id lets the
// server choose one.
func (c *Client) Register(ctx context.Context, id string) (*AuthResult, error) {
	req := map[string]string{}
	if id != "" {
		req["player_id"] = id
	}
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/players", false, req, &result); err != nil {
		return nil, err
	}
	if err := c.cfg.SaveToken(result.SessionToken); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return &result, nil
}

// Me returns the caller's matchmaking status
func (c *Client) Me(ctx context.Context) (*Status, error) {
	var result Status
	return &result, c.do(ctx, http.MethodGet, "/api/v1/players/me", true, nil, &result)
}

// JoinQueue enqueues the caller with a sealed rating
func (c *Client) JoinQueue(ctx context.Context, sealed []byte) (*QueueEntry, error) {
	var result QueueEntry
	req := map[string][]byte{"rating": sealed}
	return &result, c.do(ctx, http.MethodPost, "/api/v1/queue", true, req, &result)
}

// LeaveQueue removes the caller from the queue or their open proposal
func (c *Client) LeaveQueue(ctx context.Context) (*LeaveResult, error) {
	var result LeaveResult
	return &result, c.do(ctx, http.MethodDelete, "/api/v1/queue", true, nil, &result)
}

// QueueSize returns how many players are waiting
func (c *Client) QueueSize(ctx context.Context) (*QueueSize, error) {
	var result QueueSize
	return &result, c.do(ctx, http.MethodGet, "/api/v1/queue", true, nil, &result)
}

// Proposal fetches a proposal the caller takes part in
func (c *Client) Proposal(ctx context.Context, id string) (*Proposal, error) {
	var result Proposal
	return &result, c.do(ctx, http.MethodGet, "/api/v1/proposals/"+url.PathEscape(id), true, nil, &result)
}

// RespondToProposal accepts or declines a proposal
func (c *Client) RespondToProposal(ctx context.Context, id string, accept bool) (*Proposal, error) {
	action := "decline"
	if accept {
		action = "accept"
	}
	var result Proposal
	path := "/api/v1/proposals/" + url.PathEscape(id) + "/" + action
	return &result, c.do(ctx, http.MethodPost, path, true, nil, &result)
}

// Match fetches a committed match
func (c *Client) Match(ctx context.Context, id string) (*Match, error) {
	var result Match
	return &result, c.do(ctx, http.MethodGet, "/api/v1/matches/"+url.PathEscape(id), true, nil, &result)
}

// CompleteMatch releases both players of a finished match
func (c *Client) CompleteMatch(ctx context.Context, id string) (*Match, error) {
	var result Match
	path := "/api/v1/matches/" + url.PathEscape(id) + "/complete"
	return &result, c.do(ctx, http.MethodPost, path, true, nil, &result)
}

// StreamOptions selects where a matches stream resumes
type StreamOptions struct {
	// Since replays matches committed at or after this time
	Since time.Time
	// LastEventID resumes after a dropped connection
	LastEventID string
}

// OpenStream connects to an SSE endpoint. The caller closes the body.
func (c *Client) OpenStream(ctx context.Context, path string, opts StreamOptions) (io.ReadCloser, error) {
	if !opts.Since.IsZero() {
		path += "?since=" + url.QueryEscape(opts.Since.UTC().Format(time.RFC3339Nano))
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, true, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if opts.LastEventID != "" {
		req.Header.Set("Last-Event-ID", opts.LastEventID)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, auth bool, body any) (*http.Request, error) {
	if auth && c.cfg.Token == "" {
		return nil, ErrNotRegistered
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.cfg.ServerURL, "/")+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, body, result any) error {
	req, err := c.newRequest(ctx, method, path, auth, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	var envelope struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	envelope.Error.Status = resp.StatusCode
	return &envelope.Error
}
