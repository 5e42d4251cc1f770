package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-request UUID so backend logs can be matched
// with ours
const RequestIDHeader = "X-Request-Id"

// Most bytes we'll read from a response body. Saved-set and item responses
// are small, so anything bigger is a misbehaving server.
const maxBodyBytes = 1 << 20

// StatusError reports a non-2xx response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v %v returned status %v", e.Method, e.URL, e.StatusCode)
}

// Client handles HTTP requests to one backend. Every call is bounded by
// Timeout.
type Client struct {
	http.Client
	BaseURL *url.URL
	Timeout time.Duration
}

// New returns a Client for base. If hc is nil, http.DefaultClient's transport
// is used.
func New(base *url.URL, timeout time.Duration, hc *http.Client) *Client {
	c := &Client{
		BaseURL: base,
		Timeout: timeout,
	}
	if hc != nil {
		c.Client = *hc
	}
	return c
}

// Resolve joins path segments onto the base URL, escaping each one so that
// a segment containing "/" stays a single segment
func (c *Client) Resolve(segments ...string) string {
	u := *c.BaseURL
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.RawPath = strings.TrimRight(u.EscapedPath(), "/") + "/" + strings.Join(escaped, "/")
	// RawPath was built from escaped segments, so it always unescapes
	u.Path, _ = url.PathUnescape(u.RawPath)
	return u.String()
}

// Do sends a request with an optional JSON body and bearer token, then
// decodes a JSON response into out if out is non-nil. Responses outside the
// 2xx range produce a *StatusError.
func (c *Client) Do(ctx context.Context, method, target, token string, body, out interface{}) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("can't encode the request body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return fmt.Errorf("can't build the request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("can't decode the response from %v: %v", target, err)
	}
	return nil
}
