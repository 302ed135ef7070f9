// Package remote holds the HTTP clients the transfer orchestrator uses to
// reach the account and transaction ledgers.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/josh-kwaku/banking-core/internal/auth"
	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/dto"
	"github.com/josh-kwaku/banking-core/internal/logging"
	"github.com/josh-kwaku/banking-core/internal/middleware"
)

type Options struct {
	// Caller names the calling service in the tokens it signs.
	Caller          string
	TokenSecret     string
	TokenTTL        time.Duration
	Timeout         time.Duration
	MaxRetries      uint64
	RetryInitial    time.Duration
	RetryMax        time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type client struct {
	name       string
	baseURL    string
	opts       Options
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func newClient(name, baseURL string, opts Options) *client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 5 * time.Minute
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}

	c := &client{
		name:    name,
		baseURL: baseURL,
		opts:    opts,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		// A business rejection proves the remote is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.FromContext(context.Background()).Warn("circuit breaker state changed",
				"remote", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   *dto.APIError `json:"error"`
}

// do sends a JSON request and decodes the data field of the response into
// out. Retryable failures are retried with exponential backoff; every other
// failure is returned on the first attempt.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	log := logging.FromContext(ctx)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: marshal: %w", method, path, err)
		}
	}

	b := backoff.NewExponentialBackOff()
	if c.opts.RetryInitial > 0 {
		b.InitialInterval = c.opts.RetryInitial
	}
	if c.opts.RetryMax > 0 {
		b.MaxInterval = c.opts.RetryMax
	}
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.opts.MaxRetries), ctx)

	op := func() error {
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.send(ctx, method, path, payload, out)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %s: %w", domain.ErrServiceUnavailable, c.name, err)
		}
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("remote call failed, retrying",
			"remote", c.name,
			"method", method,
			"path", path,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if domain.KindOf(err) == domain.KindInternal && ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrServiceUnavailable, err)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

func (c *client) send(ctx context.Context, method, path string, payload []byte, out any) error {
	log := logging.FromContext(ctx)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := middleware.TraceIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}

	token, err := auth.GenerateServiceToken(c.opts.Caller, c.opts.TokenSecret, c.opts.TokenTTL)
	if err != nil {
		return fmt.Errorf("sign service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrServiceUnavailable, c.name, err)
	}
	defer resp.Body.Close()

	log.Debug("remote response received",
		"remote", c.name,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s returned %d", domain.ErrServiceUnavailable, c.name, resp.StatusCode)
	}

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env)

	if resp.StatusCode >= http.StatusBadRequest {
		if decodeErr != nil || env.Error == nil {
			return fmt.Errorf("%s returned %d without an error body", c.name, resp.StatusCode)
		}
		if de, ok := domain.Lookup(env.Error.Code); ok {
			return fmt.Errorf("%s: %w", c.name, de)
		}
		return fmt.Errorf("%s returned %d: %s: %s", c.name, resp.StatusCode, env.Error.Code, env.Error.Message)
	}

	// The remote accepted the call, so a body we cannot read leaves the
	// outcome unknown rather than failed.
	if decodeErr != nil {
		return fmt.Errorf("%w: %s: decode response: %w", domain.ErrServiceUnavailable, c.name, decodeErr)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: %s: decode data: %w", domain.ErrServiceUnavailable, c.name, err)
		}
	}
	return nil
}
