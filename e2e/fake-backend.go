package e2e

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// mockItem is the catalog's item detail shape
type mockItem struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Category          string    `json:"category"`
	Summary           string    `json:"summary"`
	SourcePublishedAt time.Time `json:"sourcePublishedAt"`
}

// fakeBackend simulates the news site's API: a region-partitioned catalog
// plus a saved-items set per bearer token.
type fakeBackend struct {
	mu     sync.Mutex
	server *httptest.Server
	// region -> item ID -> item
	items map[string]map[string]mockItem
	// bearer token -> saved keys
	savedSets map[string][]string
	// saved key -> number of catalog fetches
	fetches map[string]int
	// regions whose catalog returns 503
	down map[string]bool
	// when true, the saved-items API returns 503
	savedDown bool
}

// startFakeBackend spins up an in-process HTTP server with numItems items in
// each region. Callers should defer a call to close.
func startFakeBackend(regions []string, numItems int) *fakeBackend {
	if numItems <= 0 || len(regions) == 0 {
		panic("numItems and regions must be > 0")
	}
	fb := &fakeBackend{
		items:     make(map[string]map[string]mockItem),
		savedSets: make(map[string][]string),
		fetches:   make(map[string]int),
		down:      make(map[string]bool),
	}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	for _, r := range regions {
		fb.items[r] = make(map[string]mockItem)
		for i := 0; i < numItems; i++ {
			u := uuid.NewString()
			fb.items[r][u] = mockItem{
				ID:       u,
				Title:    fmt.Sprintf("Story %v", u),
				Category: "general",
				// Distinct per item so the expected order is unambiguous
				SourcePublishedAt: base.Add(time.Duration(rnd.Intn(1000000)) * time.Minute).Add(time.Duration(n) * time.Second),
			}
			n++
		}
	}
	fb.server = httptest.NewServer(fb.router())
	return fb
}

func (fb *fakeBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/{region}/items/{id}", fb.getItem)
	r.Route("/me/saved-items", func(r chi.Router) {
		r.Use(fb.requireToken)
		r.Get("/", fb.listSaved)
		r.Post("/import", fb.importSaved)
		r.Post("/{key}", fb.addSaved)
		r.Delete("/{key}", fb.removeSaved)
	})
	return r
}

func (fb *fakeBackend) getItem(w http.ResponseWriter, req *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	region, id := chi.URLParam(req, "region"), chi.URLParam(req, "id")
	fb.fetches[region+":"+id]++
	if fb.down[region] {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	it, ok := fb.items[region][id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(it)
}

type tokenCtxKey struct{}

func (fb *fakeBackend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tok, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
		if !ok || tok == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fb.mu.Lock()
		down := fb.savedDown
		fb.mu.Unlock()
		if down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		req.Header.Set("X-Test-Token", tok)
		next.ServeHTTP(w, req)
	})
}

func (fb *fakeBackend) listSaved(w http.ResponseWriter, req *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	json.NewEncoder(w).Encode(map[string][]string{"keys": fb.savedSets[req.Header.Get("X-Test-Token")]})
}

func (fb *fakeBackend) importSaved(w http.ResponseWriter, req *http.Request) {
	var in struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	tok := req.Header.Get("X-Test-Token")
	for _, k := range in.Keys {
		fb.addLocked(tok, k)
	}
	json.NewEncoder(w).Encode(map[string][]string{"keys": fb.savedSets[tok]})
}

func (fb *fakeBackend) addSaved(w http.ResponseWriter, req *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.addLocked(req.Header.Get("X-Test-Token"), chi.URLParam(req, "key"))
	w.WriteHeader(http.StatusNoContent)
}

func (fb *fakeBackend) removeSaved(w http.ResponseWriter, req *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	tok, k := req.Header.Get("X-Test-Token"), chi.URLParam(req, "key")
	out := fb.savedSets[tok][:0]
	for _, s := range fb.savedSets[tok] {
		if s != k {
			out = append(out, s)
		}
	}
	fb.savedSets[tok] = out
	w.WriteHeader(http.StatusNoContent)
}

// addLocked adds k to tok's set unless it's already there or names an item
// the catalog doesn't have. Callers must hold fb.mu.
func (fb *fakeBackend) addLocked(tok, k string) {
	region, id, _ := strings.Cut(k, ":")
	if _, ok := fb.items[region][id]; !ok {
		return
	}
	for _, s := range fb.savedSets[tok] {
		if s == k {
			return
		}
	}
	fb.savedSets[tok] = append(fb.savedSets[tok], k)
}

// keys returns every catalog key in region, in no particular order
func (fb *fakeBackend) keys(region string) []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	var out []string
	for id := range fb.items[region] {
		out = append(out, region+":"+id)
	}
	return out
}

// seedSaved adds keys to tok's saved set as if saved from another device
func (fb *fakeBackend) seedSaved(tok string, keys ...string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, k := range keys {
		fb.addLocked(tok, k)
	}
}

// publishedAt returns the source publish time of the item key names
func (fb *fakeBackend) publishedAt(key string) time.Time {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	region, id, _ := strings.Cut(key, ":")
	return fb.items[region][id].SourcePublishedAt
}

func (fb *fakeBackend) savedSet(tok string) []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.savedSets[tok]...)
}

func (fb *fakeBackend) fetchCount(key string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.fetches[key]
}

func (fb *fakeBackend) setRegionDown(region string, down bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.down[region] = down
}

func (fb *fakeBackend) setSavedDown(down bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.savedDown = down
}

func (fb *fakeBackend) close() {
	fb.server.Close()
}
