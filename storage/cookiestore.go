package storage

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// MaxCookieSize is the most bytes a browser will reliably keep for a single
// cookie, name and value included.
const MaxCookieSize = 4096

// CookieStore is a KeyValue backed by a cookie jar that is scoped to one
// origin. Each entry is a cookie, so every entry travels with requests made
// through a client that shares the jar. Entries are limited to MaxCookieSize.
type CookieStore struct {
	jar    http.CookieJar
	origin *url.URL
	now    func() time.Time
}

// NewCookieStore returns a CookieStore for origin. If jar is nil, a new jar
// using the public suffix list is created.
func NewCookieStore(origin *url.URL, jar http.CookieJar) (*CookieStore, error) {
	if origin == nil || origin.Host == "" {
		return nil, fmt.Errorf("the cookie store needs an origin with a host")
	}
	if jar == nil {
		var err error
		jar, err = cookiejar.New(&cookiejar.Options{
			PublicSuffixList: publicsuffix.List,
		})
		if err != nil {
			return nil, fmt.Errorf("can't create a cookie jar: %v", err)
		}
	}
	return &CookieStore{
		jar:    jar,
		origin: origin,
		now:    time.Now,
	}, nil
}

// Jar returns the cookie jar so HTTP clients can attach the store's entries
// to their requests.
func (c *CookieStore) Jar() http.CookieJar {
	return c.jar
}

// Put sets a cookie named after the entry key. A zero TTL produces a session
// cookie.
func (c *CookieStore) Put(entry KVEntry) error {
	if n := len(entry.Key) + len(entry.Value); n > MaxCookieSize {
		return fmt.Errorf("cookie %q is %v bytes, over the %v-byte limit", entry.Key, n, MaxCookieSize)
	}
	ck := &http.Cookie{
		Name:     string(entry.Key),
		Value:    string(entry.Value),
		Path:     "/",
		Secure:   c.origin.Scheme == "https",
		SameSite: http.SameSiteLaxMode,
	}
	if entry.TTL > 0 {
		ck.Expires = c.now().Add(entry.TTL)
	}
	c.jar.SetCookies(c.origin, []*http.Cookie{ck})
	return nil
}

// Read returns the value of the cookie named key
func (c *CookieStore) Read(key []byte) (KVEntry, error) {
	for _, ck := range c.jar.Cookies(c.origin) {
		if ck.Name == string(key) {
			return KVEntry{
				Key:   key,
				Value: []byte(ck.Value),
			}, nil
		}
	}
	return KVEntry{}, ErrNotFound
}

// Delete expires the cookie named key
func (c *CookieStore) Delete(key []byte) error {
	c.jar.SetCookies(c.origin, []*http.Cookie{{
		Name:   string(key),
		Path:   "/",
		MaxAge: -1,
	}})
	return nil
}

// Cleanup is no-op since the jar drops expired cookies on its own
func (c *CookieStore) Cleanup() error {
	return nil
}

// Close is no-op
func (c *CookieStore) Close() error {
	return nil
}
