// Package client is a typed REST client for the fantasy league API.
//
// Failed calls return an *Error whose Kind tells callers how to present
// it. Read operations report a missing resource as a nil result with a nil
// error. Nothing is retried.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "http://localhost:8080/api/v1"

	// fallbackMessage is shown when the server gave no usable message.
	fallbackMessage = "An unexpected error occurred"
)

// Kind classifies a failed call.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNetwork      Kind = "network"
	KindServer       Kind = "server"
)

// Error is returned by every failed call.
type Error struct {
	Kind       Kind
	StatusCode int    // 0 for network errors
	Code       string // server error code, when sent
	Message    string
	Err        error // transport error for KindNetwork
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fantasy api %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("fantasy api %s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Client struct {
	http *resty.Client
}

// Option configures the client.
type Option func(*resty.Client)

func WithBaseURL(url string) Option {
	return func(c *resty.Client) { c.SetBaseURL(url) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *resty.Client) { c.SetAuthToken(token) }
}

// WithHTTPClient swaps the underlying transport client, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *resty.Client) {
		c.SetTransport(hc.Transport)
		if hc.Timeout > 0 {
			c.SetTimeout(hc.Timeout)
		}
	}
}

func New(opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(DefaultBaseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}
}

// SetToken replaces the bearer token, e.g. after IssueToken.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// do executes one request and decodes a 2xx body into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	req := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: fallbackMessage, Err: err}
	}
	if !resp.IsError() {
		return nil
	}
	return responseError(resp)
}

// get is do for reads: a 404 yields found=false and no error.
func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) (bool, error) {
	err := c.do(ctx, http.MethodGet, path, query, nil, out)
	if IsKind(err, KindNotFound) {
		return false, nil
	}
	return err == nil, err
}

func responseError(resp *resty.Response) *Error {
	e := &Error{StatusCode: resp.StatusCode(), Message: fallbackMessage}
	if b, ok := resp.Error().(*errorBody); ok && b != nil {
		e.Code = b.Error
		if b.Message != "" {
			e.Message = b.Message
		}
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status >= 500:
		e.Kind = KindServer
		// 5xx bodies are never shown as-is.
		e.Message = fallbackMessage
	default:
		e.Kind = KindValidation
	}
	return e
}
