package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resumewizard/internal/config"
	"resumewizard/internal/errors"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxResponseSize bounds how much of an upstream body is buffered
const maxResponseSize = 32 << 20

// Observer receives one notification per upstream call
type Observer interface {
	ObserveUpstream(ctx context.Context, endpoint string, status int, duration time.Duration, err error)
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Breaker    *Breaker
	Logger     *errors.Logger
	Observer   Observer
}

// Client is the single choke point for calls to the resume backend
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *Breaker
	logger     *errors.Logger
	observer   Observer
}

// New creates a client. Requests go through an otelhttp transport so the
// trace context propagates upstream.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = errors.Discard()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
		breaker:    opts.Breaker,
		logger:     logger,
		observer:   opts.Observer,
	}
}

// NewFromConfig builds a client with a breaker from backend configuration
func NewFromConfig(cfg config.BackendConfig, logger *errors.Logger, observer Observer, onBreakerChange StateChangeFunc) *Client {
	return New(Options{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		Breaker:   NewBreaker("resume", cfg.CircuitBreaker, logger, onBreakerChange),
		Logger:    logger,
		Observer:  observer,
	})
}

// BaseURL returns the upstream root the client resolves endpoints against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Breaker exposes the client's breaker for health and stats reporting
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// RequestOptions describes a single outbound call
type RequestOptions struct {
	Method      string
	Token       string
	Header      http.Header
	Body        io.Reader
	ContentType string
}

// Response is a fully buffered upstream response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsJSON reports whether the upstream declared a JSON body
func (r *Response) IsJSON() bool {
	return isJSONContentType(r.Header)
}

// JSON decodes the body into v
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &APIError{StatusCode: r.StatusCode, Message: MessageUnexpected, Cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// Request sends a call and returns the response only when it is a 2xx without
// an in-band error code. Every other outcome is an *APIError. Nothing is retried.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	if opts.Body != nil && opts.ContentType == "" {
		opts.ContentType = "application/json"
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*Response, error) {
		resp, err := c.do(ctx, endpoint, opts)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp, normalizeStatusError(resp.StatusCode, resp.Header, resp.Body)
		}
		return resp, nil
	})
	c.observe(ctx, endpoint, resp, err, time.Since(start))

	if err != nil {
		c.logFailure(endpoint, opts.Method, err)
		return nil, err
	}

	if err := CheckResponseForErrors(resp.StatusCode, resp.Body); err != nil {
		c.logFailure(endpoint, opts.Method, err)
		return nil, err
	}
	return resp, nil
}

// RequestFormData posts a multipart form. The content type comes from the
// multipart writer so the boundary is always right.
func (c *Client) RequestFormData(ctx context.Context, endpoint, token string, fields ...FormField) (*Response, error) {
	body, contentType, err := EncodeForm(fields...)
	if err != nil {
		return nil, &APIError{StatusCode: 0, Message: MessageUnexpected, Cause: err}
	}
	return c.Request(ctx, endpoint, RequestOptions{
		Method:      http.MethodPost,
		Token:       token,
		Body:        bytes.NewReader(body),
		ContentType: contentType,
	})
}

// upstreamStatusError lets Forward report 5xx to the breaker while still
// relaying the response to its caller
type upstreamStatusError struct {
	resp *Response
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.resp.StatusCode)
}

// Forward relays a request and returns the upstream response whatever its
// status. Only transport failures and an open breaker produce an error.
func (c *Client) Forward(ctx context.Context, method, endpoint string, header http.Header, body io.Reader) (*Response, error) {
	opts := RequestOptions{
		Method:      method,
		Header:      header,
		Body:        body,
		ContentType: header.Get("Content-Type"),
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*Response, error) {
		resp, err := c.do(ctx, endpoint, opts)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &upstreamStatusError{resp: resp}
		}
		return resp, nil
	})

	var statusErr *upstreamStatusError
	if stderrors.As(err, &statusErr) {
		resp, err = statusErr.resp, nil
	}
	c.observe(ctx, endpoint, resp, err, time.Since(start))
	if err != nil {
		c.logFailure(endpoint, method, err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// do performs the HTTP exchange and buffers the body
func (c *Client) do(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), opts.Body)
	if err != nil {
		return nil, transportError(fmt.Errorf("build request: %w", err))
	}

	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(fmt.Errorf("read response: %w", err))
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (c *Client) observe(ctx context.Context, endpoint string, resp *Response, err error, d time.Duration) {
	if c.observer == nil {
		return
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	} else if apiErr, ok := AsAPIError(err); ok {
		status = apiErr.StatusCode
	}
	c.observer.ObserveUpstream(ctx, endpoint, status, d, err)
}

func (c *Client) logFailure(endpoint, method string, err error) {
	args := []any{"endpoint", endpoint, "method", method}
	if apiErr, ok := AsAPIError(err); ok {
		args = append(args, "status_code", apiErr.StatusCode, "message", apiErr.Message)
		if apiErr.ErrorCode != nil {
			args = append(args, "backend_error_code", *apiErr.ErrorCode)
		}
		if apiErr.Cause != nil {
			args = append(args, "cause", apiErr.Cause.Error())
		}
		if apiErr.StatusCode > 0 && apiErr.StatusCode < http.StatusInternalServerError {
			c.logger.Warn("Backend request rejected", args...)
			return
		}
	}
	c.logger.LogError(err, "Backend request failed", args...)
}
