// Package gateway is the HTTP client for the directory backend's user and
// saved-business endpoints. Authorization is passed explicitly to every
// authenticated call; the client itself holds no credentials.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the production backend
const DefaultBaseURL = "https://byzxpo-server.onrender.com/api"

const (
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-ID"
	maxBodyBytes        = 1 << 20
)

// Client talks to the backend REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	authScheme string
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithAuthScheme prefixes the token in the Authorization header, e.g. "Bearer".
// The backend expects the raw token, so the default is no scheme.
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		c.authScheme = strings.TrimSpace(scheme)
	}
}

// WithLogger sets the request logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client rooted at baseURL (e.g. https://host/api)
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "gateway").Logger()
	return c
}

// BaseURL returns the API root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// messageField names the body field an error message is read from
type messageField int

const (
	fieldError messageField = iota
	fieldMessage
)

// request describes one call
type request struct {
	op       string
	method   string
	path     string
	body     any
	token    string // empty for unauthenticated calls
	fallback string
	errField messageField
}

// do performs the call and returns the raw 2xx body. Every failure comes back
// as *Error.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, &Error{Kind: KindMalformed, Op: r.op, Message: r.fallback, Err: pkgerrors.Wrap(err, "encode request")}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: r.op, Message: r.fallback, Err: pkgerrors.Wrap(err, "build request")}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set(headerAuthorization, c.authorization(r.token))
	}

	logger := c.logger.With().Str("op", r.op).Str("request_id", requestID).Logger()
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug().Err(err).Dur("elapsed", time.Since(start)).Msg("request failed")
		return nil, &Error{Kind: KindNetwork, Op: r.op, Message: r.fallback, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: r.op, StatusCode: resp.StatusCode, Message: r.fallback, Err: pkgerrors.Wrap(err, "read response")}
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := serverMessage(body, r.errField)
		if msg == "" {
			msg = r.fallback
		}
		return nil, &Error{Kind: KindRejected, Op: r.op, StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}

func (c *Client) authorization(token string) string {
	if c.authScheme == "" {
		return token
	}
	return c.authScheme + " " + token
}

func malformed(op, fallback string, status int, err error) *Error {
	return &Error{Kind: KindMalformed, Op: op, StatusCode: status, Message: fallback, Err: err}
}

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}
