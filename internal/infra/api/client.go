package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"quiz-tournament-client/internal/domain"
)

const maxBodyBytes = 4 << 20

// Config tunes the REST client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RatePerSecond  float64
	Burst          int
	MaxRetries     uint64
	InitialBackoff time.Duration
}

// Client talks to the tournament REST API. Requests carry the session's token;
// idempotent requests are retried with exponential backoff.
type Client struct {
	baseURL        string
	http           *http.Client
	session        *Session
	limiter        *rate.Limiter
	maxRetries     uint64
	initialBackoff time.Duration
	logger         *slog.Logger
}

func NewClient(cfg Config, session *Session, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if session == nil {
		session = NewSession()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		http:           &http.Client{Timeout: cfg.Timeout},
		session:        session,
		limiter:        rate.NewLimiter(limit, cfg.Burst),
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		logger:         logger,
	}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}
	idempotent := method == http.MethodGet || method == http.MethodPut || method == http.MethodDelete

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			err = fmt.Errorf("%w: %s %s: %v", domain.ErrNetwork, method, path, err)
			if idempotent && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			err = fmt.Errorf("%w: read %s %s: %v", domain.ErrNetwork, method, path, err)
			if idempotent {
				return err
			}
			return backoff.Permanent(err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || len(bytes.TrimSpace(body)) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: decode %s %s: %v", domain.ErrNetwork, method, path, err))
			}
			return nil
		}

		apiErr := statusError(method, path, resp.StatusCode, body)
		if retryableStatus(resp.StatusCode, idempotent) {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = 5 * time.Second
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)

	return backoff.RetryNotify(op, retry, func(err error, wait time.Duration) {
		c.logger.Warn("retrying api request",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	})
}

func retryableStatus(status int, idempotent bool) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return idempotent
	}
	return false
}

func statusError(method, path string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if eb.Error != "" {
			msg = eb.Error
		} else if eb.Message != "" {
			msg = eb.Message
		}
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized:
		kind = domain.ErrUnauthorized
	case status == http.StatusForbidden:
		kind = domain.ErrForbidden
	case status == http.StatusNotFound:
		kind = domain.ErrNotFound
	case status >= 500 || status == http.StatusTooManyRequests:
		kind = domain.ErrNetwork
	default:
		kind = domain.ErrRequestRejected
	}
	return &StatusError{Method: method, Path: path, Code: status, Message: msg, kind: kind}
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.Code, e.kind)
	}
	return fmt.Sprintf("%s %s: status %d: %v: %s", e.Method, e.Path, e.Code, e.kind, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// IsStatus reports whether err is an API response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
