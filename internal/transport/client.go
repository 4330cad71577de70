// Package transport performs JSON API requests with bounded retry on
// transient connection failures. Callers get a decoded result or nil; failures
// are logged here and never propagate as errors.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog"

	"relaybot/internal/config"
)

// Result is a successfully decoded JSON object response.
type Result struct {
	Raw    json.RawMessage
	Fields map[string]any
}

// OK reports the conventional "ok": true flag.
func (r *Result) OK() bool {
	if r == nil {
		return false
	}
	ok, _ := r.Fields["ok"].(bool)
	return ok
}

// Decode unmarshals the raw body into v.
func (r *Result) Decode(v any) error {
	if r == nil {
		return errors.New("nil result")
	}
	return json.Unmarshal(r.Raw, v)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

type Client struct {
	http    *http.Client
	headers http.Header
	policy  retrypolicy.RetryPolicy[[]byte]
	log     zerolog.Logger
}

type Option func(*Client)

// WithHeaders sets headers sent on every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers.Set(k, v)
		}
	}
}

// WithHTTPClient replaces the underlying client. A cookie jar is attached if
// the client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(cfg config.TransportConfig, log zerolog.Logger, opts ...Option) *Client {
	cfg = normalize(cfg)

	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		headers: http.Header{},
		log:     log.With().Str("component", "transport").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http.Jar == nil {
		if jar, err := cookiejar.New(nil); err == nil {
			c.http.Jar = jar
		}
	}

	builder := retrypolicy.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool { return IsTransient(err) }).
		WithMaxAttempts(cfg.MaxAttempts).
		WithBackoff(cfg.Delay, cfg.MaxDelay).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[[]byte]) {
			c.log.Debug().Int("attempt", e.Attempts()).Err(e.LastError()).Msg("retrying request")
		})
	if cfg.Jitter > 0 {
		builder = builder.WithJitter(cfg.Jitter)
	}
	c.policy = builder.Build()

	return c
}

func normalize(cfg config.TransportConfig) config.TransportConfig {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Millisecond
	}
	if cfg.MaxDelay < cfg.Delay {
		cfg.MaxDelay = cfg.Delay
	}
	// jitter may not swallow the whole delay
	if cfg.Jitter >= cfg.Delay {
		cfg.Jitter = cfg.Delay / 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}

// PerformRequest issues method (GET or POST) against endpoint. GET params are
// sent in the query string, POST params as a form body. It returns nil on any
// failure after logging it once.
func (c *Client) PerformRequest(ctx context.Context, method, endpoint string, params url.Values) *Result {
	log := c.log.With().Str("method", method).Str("url", endpoint).Logger()

	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPost {
		log.Error().Msg("unsupported request method")
		return nil
	}
	if endpoint == "" {
		log.Error().Msg("empty request url")
		return nil
	}

	body, err := failsafe.With(c.policy).WithContext(ctx).Get(func() ([]byte, error) {
		return c.attempt(ctx, method, endpoint, params)
	})
	if err != nil {
		log.Error().Err(err).Str("params", redact(params)).Msg("request failed")
		return nil
	}

	res := &Result{Raw: body}
	if err := json.Unmarshal(body, &res.Fields); err != nil {
		log.Error().Err(err).Msg("malformed response body")
		return nil
	}
	return res
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		u, perr := url.Parse(endpoint)
		if perr != nil {
			return nil, perr
		}
		if len(params) > 0 {
			q := u.Query()
			for k, vs := range params {
				for _, v := range vs {
					q.Add(k, v)
				}
			}
			u.RawQuery = q.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(data), 200)}
	}
	return data, nil
}

// IsTransient reports connection level failures worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

// redact hides credential-looking parameters in logs.
func redact(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	cp := url.Values{}
	for k, vs := range params {
		if strings.Contains(strings.ToLower(k), "token") {
			cp.Set(k, "***")
			continue
		}
		cp[k] = vs
	}
	return cp.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
