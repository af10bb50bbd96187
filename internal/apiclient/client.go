// Package apiclient talks to the institutional REST backend.
//
// Every resource exposes the same shape:
//
//	GET    /api/{resource}?search={q}&page={n}
//	GET    /api/{resource}/{id}
//	POST   /api/{resource}
//	PUT    /api/{resource}/{id}
//	DELETE /api/{resource}/{id}
//
// Calls are authenticated with a bearer token taken from the caller's session.
// Failures are returned as *Error, classified by Kind. Nothing is retried.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/SanmishaTech/jssp-sub001/internal/metrics"
)

// maxBodyBytes bounds how much of a backend response is read.
const maxBodyBytes = 8 << 20

// Config holds client settings.
type Config struct {
	BaseURL   string        // e.g. "https://jssp.example.org"
	Timeout   time.Duration // per-request timeout, 0 means 30s
	RateLimit float64       // requests per second across the console, 0 disables limiting
	Burst     int
	LoginPath string // defaults to "/api/login"
}

// Client is a rate-limited REST client. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	loginPath string
	logger    *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/api/login"
	}

	return &Client{
		baseURL: u,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    20,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		limiter:   limiter,
		loginPath: loginPath,
		logger:    logger,
	}, nil
}

// ListParams selects one page of a listing.
type ListParams struct {
	Search string
	Page   int
}

// List fetches one page of resource. key is the member of the data object
// holding the rows (e.g. "Staff").
func (c *Client) List(ctx context.Context, token, resource, key string, p ListParams) (*Page, error) {
	op := resource + ".list"

	q := url.Values{}
	q.Set("search", p.Search)
	page := p.Page
	if page < 1 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page))

	body, err := c.do(ctx, op, resource, http.MethodGet, c.resourcePath(resource, "")+"?"+q.Encode(), token, nil, "")
	if err != nil {
		return nil, err
	}
	result, err := decodePage(body, key)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Op: op, Resource: resource, Status: http.StatusOK, Err: err}
	}
	return result, nil
}

// Get fetches a single entity.
func (c *Client) Get(ctx context.Context, token, resource, key, id string) (Entity, error) {
	op := resource + ".get"
	body, err := c.do(ctx, op, resource, http.MethodGet, c.resourcePath(resource, id), token, nil, "")
	if err != nil {
		return nil, err
	}
	entity, err := decodeEntity(body, key)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Op: op, Resource: resource, Status: http.StatusOK, Err: err}
	}
	return entity, nil
}

// Create posts a new entity. The returned entity is nil when the backend
// acknowledges without echoing the record.
func (c *Client) Create(ctx context.Context, token, resource, key string, p Payload) (Entity, error) {
	op := resource + ".create"
	body, ct, err := p.encode("")
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Resource: resource, Err: err}
	}
	resp, err := c.do(ctx, op, resource, http.MethodPost, c.resourcePath(resource, ""), token, body, ct)
	if err != nil {
		return nil, err
	}
	return c.echoed(op, resp, key), nil
}

// Update replaces an entity. Multipart updates travel as POST with
// _method=PUT because the backend cannot parse multipart PUT bodies.
func (c *Client) Update(ctx context.Context, token, resource, key, id string, p Payload) (Entity, error) {
	op := resource + ".update"
	method, override := http.MethodPut, ""
	if p.IsMultipart() {
		method, override = http.MethodPost, http.MethodPut
	}
	body, ct, err := p.encode(override)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Resource: resource, Err: err}
	}
	resp, err := c.do(ctx, op, resource, method, c.resourcePath(resource, id), token, body, ct)
	if err != nil {
		return nil, err
	}
	return c.echoed(op, resp, key), nil
}

// Delete removes an entity.
func (c *Client) Delete(ctx context.Context, token, resource, id string) error {
	_, err := c.do(ctx, resource+".delete", resource, http.MethodDelete, c.resourcePath(resource, id), token, nil, "")
	return err
}

func (c *Client) echoed(op string, body []byte, key string) Entity {
	if len(body) == 0 {
		return nil
	}
	entity, err := decodeEntity(body, key)
	if err != nil {
		c.logger.Debug("backend did not echo entity", "op", op, "error", err)
		return nil
	}
	return entity
}

func (c *Client) resourcePath(resource, id string) string {
	p := "/api/" + url.PathEscape(resource)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// do performs one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, resource, method, path, token string, body io.Reader, contentType string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Resource: resource, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Resource: resource, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendCall(resource, method, 0, time.Since(start))
		c.logger.Warn("backend call failed", "op", op, "method", method, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &Error{Kind: KindTransport, Op: op, Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	duration := time.Since(start)
	metrics.BackendCall(resource, method, resp.StatusCode, duration)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Resource: resource, Status: resp.StatusCode, Err: err}
	}

	c.logger.Debug("backend call",
		"op", op,
		"method", method,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(op, resource, resp.StatusCode, data)
	}
	return data, nil
}

// IsUnauthorized reports whether err is a backend 401, meaning the session
// token is no longer accepted.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusUnauthorized
}
