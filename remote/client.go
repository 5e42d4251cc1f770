package remote

//go:generate mockgen -source=client.go -destination=../mocks/remote.go -package=mocks SavedSet

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ptgott/savedsync/auth"
	"github.com/ptgott/savedsync/httpapi"
	"github.com/ptgott/savedsync/saved"
	"github.com/rs/zerolog/log"
)

// ErrRemoteUnavailable covers every way a remote call can fail
var ErrRemoteUnavailable = errors.New("remote saved set unavailable")

// SavedSet is the server-side list of saved keys for the signed-in person
type SavedSet interface {
	// ListKeys returns the server's saved keys
	ListKeys(ctx context.Context) ([]saved.Key, error)
	// ImportKeys adds keys and returns the server's resulting key list
	ImportKeys(ctx context.Context, keys []saved.Key) ([]saved.Key, error)
	AddKey(ctx context.Context, key saved.Key) error
	RemoveKey(ctx context.Context, key saved.Key) error
}

// keysBody is the request and response shape of the saved-items API
type keysBody struct {
	Keys []string `json:"keys"`
}

// Client implements SavedSet over HTTP
type Client struct {
	api    *httpapi.Client
	tokens auth.TokenSource
}

// NewClient returns a Client for the API described by conf. hc may be nil.
func NewClient(conf Config, tokens auth.TokenSource, hc *http.Client) *Client {
	return &Client{
		api:    httpapi.New(conf.BaseURL, conf.Timeout, hc),
		tokens: tokens,
	}
}

// ListKeys calls GET /me/saved-items
func (c *Client) ListKeys(ctx context.Context) ([]saved.Key, error) {
	var out keysBody
	if err := c.do(ctx, http.MethodGet, c.api.Resolve("me", "saved-items"), nil, &out); err != nil {
		return nil, err
	}
	return c.parse(out), nil
}

// ImportKeys calls POST /me/saved-items/import
func (c *Client) ImportKeys(ctx context.Context, keys []saved.Key) ([]saved.Key, error) {
	var out keysBody
	in := keysBody{Keys: saved.Strings(keys)}
	if err := c.do(ctx, http.MethodPost, c.api.Resolve("me", "saved-items", "import"), in, &out); err != nil {
		return nil, err
	}
	return c.parse(out), nil
}

// AddKey calls POST /me/saved-items/:key
func (c *Client) AddKey(ctx context.Context, key saved.Key) error {
	return c.do(ctx, http.MethodPost, c.api.Resolve("me", "saved-items", string(key)), nil, nil)
}

// RemoveKey calls DELETE /me/saved-items/:key
func (c *Client) RemoveKey(ctx context.Context, key saved.Key) error {
	return c.do(ctx, http.MethodDelete, c.api.Resolve("me", "saved-items", string(key)), nil, nil)
}

func (c *Client) do(ctx context.Context, method, target string, body, out interface{}) error {
	token, ok := c.tokens.Token()
	if !ok {
		return fmt.Errorf("%w: no bearer token", ErrRemoteUnavailable)
	}
	if err := c.api.Do(ctx, method, target, token, body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

// parse drops keys the server sent that we can't use
func (c *Client) parse(b keysBody) []saved.Key {
	keys, dropped := saved.ParseKeys(b.Keys)
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("the server returned malformed saved keys")
	}
	return saved.Dedupe(keys)
}
