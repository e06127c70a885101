package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	neturl "net/url"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"giftscope/internal/config"
	apperrors "giftscope/internal/errors"
	"giftscope/internal/filter"
	"giftscope/internal/logging"
)

// Version is stamped into the default User-Agent. cmd/giftscope overrides it
// from the linker-provided build version.
var Version = "dev"

// maxBodyBytes caps how much of a response body is read.
var maxBodyBytes int64 = 8 << 20

// Client talks to the Data Source API over HTTP.
type Client struct {
	base    *neturl.URL
	http    *http.Client
	cfg     *config.Config
	log     *logging.Logger
	retries Retrier
	sleep   func(ctx context.Context, d time.Duration) error
}

// Retrier receives one call per retried request. *metrics.Manager satisfies it.
type Retrier interface {
	IncRetries(n int64)
}

type Option func(*Client)

// WithHTTPClient replaces the tuned default transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithRetrier(r Retrier) Option {
	return func(c *Client) { c.retries = r }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func NewClient(cfg *config.Config, log *logging.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("api: nil config")
	}
	raw := strings.TrimSpace(cfg.API.BaseURL)
	u, err := neturl.Parse(strings.TrimRight(raw, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.Validation("client", fmt.Sprintf("invalid api.base_url %q", raw))
	}
	c := &Client{base: u, http: newHTTPClient(cfg), cfg: cfg, log: log, sleep: sleepCtx}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func newHTTPClient(cfg *config.Config) *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	client := &http.Client{Transport: tr, Timeout: cfg.Timeout()}
	// Never forward the bearer token to a different host.
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("too many redirects")
		}
		prev := via[len(via)-1]
		if ua := prev.Header.Get("User-Agent"); ua != "" {
			req.Header.Set("User-Agent", ua)
		}
		if prev.URL != nil && req.URL != nil && !strings.EqualFold(prev.URL.Host, req.URL.Host) {
			req.Header.Del("Authorization")
		}
		return nil
	}
	return client
}

// Close releases idle keep-alive connections.
func (c *Client) Close() { c.http.CloseIdleConnections() }

// userAgent returns the configured User-Agent or "giftscope/<version> (<goos>/<goarch>)".
func userAgent(cfg *config.Config) string {
	if cfg != nil && cfg.API.UserAgent != "" {
		return cfg.API.UserAgent
	}
	return fmt.Sprintf("giftscope/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

func (c *Client) Attributes(ctx context.Context, collection string) (filter.Catalog, error) {
	const op = "attributes"
	if strings.TrimSpace(collection) == "" {
		return nil, apperrors.Validation(op, "collection is required")
	}
	var raw map[string]map[string]filter.Stat
	if err := c.do(ctx, op, http.MethodGet, c.collectionURL(collection, "attributes"), nil, &raw); err != nil {
		return nil, err
	}
	return filter.NormalizeCatalog(raw), nil
}

func (c *Client) Items(ctx context.Context, q filter.Query) (*ItemsPage, error) {
	const op = "items"
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var page ItemsPage
	if err := c.do(ctx, op, http.MethodPost, c.collectionURL(q.Collection, "items"), newQueryBody(q, false), &page); err != nil {
		return nil, err
	}
	if page.TotalItems < 0 {
		return nil, apperrors.API(op, 0, "negative totalItems %d", page.TotalItems)
	}
	return &page, nil
}

func (c *Client) CollectionData(ctx context.Context, q filter.Query) (*CollectionResult, error) {
	const op = "collection data"
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var raw rawCollectionResult
	if err := c.do(ctx, op, http.MethodPost, c.collectionURL(q.Collection, "data"), newQueryBody(q, true), &raw); err != nil {
		return nil, err
	}
	res := &CollectionResult{CollectionData: raw.CollectionData}
	if res.CollectionData.GiftName == "" {
		res.CollectionData.GiftName = q.Collection
	}
	if q.RefreshCatalog {
		res.Attributes = filter.NormalizeCatalog(raw.Attributes)
	}
	return res, nil
}

func (c *Client) collectionURL(collection, leaf string) string {
	return c.base.JoinPath("collections", neturl.PathEscape(collection), leaf).String()
}

// do runs one logical request with retries on transport failures, 429 and 5xx.
func (c *Client) do(ctx context.Context, op, method, url string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperrors.Validation(op, "encode request: "+err.Error())
		}
		payload = b
	}
	maxAttempts := c.cfg.API.MaxRetries + 1
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if c.retries != nil {
				c.retries.IncRetries(1)
			}
			wait := c.backoff(attempt, lastErr)
			c.log.Debugf("%s: retry %d/%d in %s: %v", op, attempt, maxAttempts-1, wait, lastErr)
			if err := c.sleep(ctx, wait); err != nil {
				return apperrors.Network(op, err)
			}
		}
		retry, err := c.attempt(ctx, op, method, url, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, op, method, url string, payload []byte, out any) (retry bool, err error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return false, apperrors.Validation(op, "build request: "+err.Error())
	}
	req.Header.Set("User-Agent", userAgent(c.cfg))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.cfg.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debugf("%s %s: %v", method, logging.SanitizeURL(url), err)
		return true, apperrors.Network(op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debugf("%s %s -> %d (%s) id=%s", method, logging.SanitizeURL(url), resp.StatusCode, time.Since(start).Round(time.Millisecond), req.Header.Get("X-Request-ID"))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return true, apperrors.Network(op, err)
	}
	if int64(len(data)) > maxBodyBytes {
		return false, apperrors.API(op, resp.StatusCode, "response too large (over %s)", humanize.IBytes(uint64(maxBodyBytes)))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := apperrors.API(op, resp.StatusCode, "%s", statusMessage(resp.StatusCode, resp.Status, data, req.Header.Get("Authorization") != ""))
		if resp.StatusCode == http.StatusTooManyRequests {
			return true, &rateLimitedError{after: parseRetryAfter(resp.Header.Get("Retry-After")), err: e}
		}
		return resp.StatusCode >= 500, e
	}
	if out == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, apperrors.API(op, resp.StatusCode, "malformed response: %v", err)
	}
	return false, nil
}

// rateLimitedError carries the server's Retry-After hint alongside the API error.
type rateLimitedError struct {
	after time.Duration
	err   *apperrors.Error
}

func (e *rateLimitedError) Error() string { return e.err.Error() }
func (e *rateLimitedError) Unwrap() error { return e.err }

func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	b := c.cfg.API.Backoff
	lo := b.MinMS
	if lo <= 0 {
		lo = 200
	}
	hi := b.MaxMS
	if hi < lo {
		hi = lo
	}
	var rl *rateLimitedError
	if errors.As(lastErr, &rl) && rl.after > 0 {
		d := rl.after
		if ceiling := time.Duration(hi) * time.Millisecond * 4; d > ceiling {
			d = ceiling
		}
		return d
	}
	ms := lo << (attempt - 1)
	if ms > hi || ms <= 0 {
		ms = hi
	}
	if b.Jitter && ms > lo {
		ms = lo + rand.Intn(ms-lo+1)
	}
	return time.Duration(ms) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseRetryAfter(raw string) time.Duration {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(http.TimeFormat, s); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}

// statusMessage prefers a server-provided {"error"|"message": ...} body and
// falls back to friendly text for common statuses.
func statusMessage(code int, status string, body []byte, hadAuth bool) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &env) == nil {
		if m := strings.TrimSpace(env.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(env.Error); m != "" {
			return m
		}
	}
	switch code {
	case http.StatusTooManyRequests:
		return "429 Too Many Requests: rate limited"
	case http.StatusUnauthorized:
		if hadAuth {
			return "401 Unauthorized: token present but not authorized"
		}
		return "401 Unauthorized: token required"
	case http.StatusForbidden:
		return "403 Forbidden: access denied"
	case http.StatusNotFound:
		return "404 Not Found: unknown collection"
	default:
		if status == "" {
			return strconv.Itoa(code)
		}
		return status
	}
}
