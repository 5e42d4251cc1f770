package catalog

//go:generate mockgen -source=client.go -destination=../mocks/catalog.go -package=mocks Fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ptgott/savedsync/httpapi"
	"github.com/ptgott/savedsync/saved"
)

// ErrUnresolvable means an item couldn't be fetched or didn't make sense.
// It's worth trying again later.
var ErrUnresolvable = errors.New("item unresolvable")

// Fetcher resolves a saved key into a full record
type Fetcher interface {
	Fetch(ctx context.Context, key saved.Key) (saved.Record, error)
}

// item is the catalog's item detail shape
type item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
	Scores   struct {
		Heat      float64 `json:"heat"`
		Relevance float64 `json:"relevance"`
		Comments  int     `json:"comments"`
	} `json:"scores"`
	SourcePublishedAt *time.Time `json:"sourcePublishedAt"`
	PublishedAt       *time.Time `json:"publishedAt"`
}

// Client implements Fetcher over HTTP
type Client struct {
	api *httpapi.Client
}

// NewClient returns a Client for the catalog described by conf. hc may be nil.
func NewClient(conf Config, hc *http.Client) *Client {
	return &Client{
		api: httpapi.New(conf.BaseURL, conf.Timeout, hc),
	}
}

// Fetch calls GET /<region>/items/<itemId>. Every failure wraps
// ErrUnresolvable.
func (c *Client) Fetch(ctx context.Context, key saved.Key) (saved.Record, error) {
	var it item
	err := c.api.Do(ctx, http.MethodGet, c.api.Resolve(key.Region(), "items", key.ItemID()), "", nil, &it)
	if err != nil {
		return saved.Record{}, fmt.Errorf("%w: %v: %v", ErrUnresolvable, key, err)
	}

	if it.ID != "" && it.ID != key.ItemID() {
		return saved.Record{}, fmt.Errorf("%w: asked for %v but got item %q", ErrUnresolvable, key, it.ID)
	}

	r := saved.Record{
		Region:   key.Region(),
		ItemID:   key.ItemID(),
		Title:    it.Title,
		Category: it.Category,
		Summary:  it.Summary,
		Scores: saved.Scores{
			Heat:      it.Scores.Heat,
			Relevance: it.Scores.Relevance,
			Comments:  it.Scores.Comments,
		},
		SourcePublishedAt: it.SourcePublishedAt,
		PublishedAt:       it.PublishedAt,
	}
	if err := r.Validate(); err != nil {
		return saved.Record{}, fmt.Errorf("%w: %v: %v", ErrUnresolvable, key, err)
	}
	return r, nil
}
