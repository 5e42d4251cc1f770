package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ptgott/savedsync/auth"
	"github.com/ptgott/savedsync/catalog"
	"github.com/ptgott/savedsync/metrics"
	"github.com/ptgott/savedsync/remote"
	"github.com/ptgott/savedsync/saved"
	"github.com/ptgott/savedsync/storage"
	"github.com/ptgott/savedsync/syncer"
	"github.com/ptgott/savedsync/userconfig"
	"github.com/rs/zerolog/log"
)

// cookieEntryPrefix namespaces the persisted cookie jar within the record
// cache's database
const cookieEntryPrefix = "cookie:"

// App holds everything one run needs. Callers must Close it.
type App struct {
	Service *syncer.Service
	Fetcher catalog.Fetcher
	Metrics *metrics.Metrics

	db      storage.KeyValue
	cookies *storage.CookieStore
	conf    *userconfig.Meta
}

// Open sets up storage and clients for a validated config. reg receives the
// app's metrics; nil means the default registry.
func Open(conf *userconfig.Meta, reg prometheus.Registerer) (*App, error) {
	m := metrics.New(reg)

	var db storage.KeyValue
	switch {
	case conf.OneOff:
		db = &storage.NoOpDB{}
	case conf.RecordCache.StorageDirPath == "":
		db = storage.NewMemoryDB(conf.RecordCache.KeyTTLDuration)
	default:
		var err error
		db, err = storage.NewBadgerDB(&conf.RecordCache)
		if err != nil {
			return nil, err
		}
	}
	log.Info().Msg("set up the database connection successfully")

	cookies, err := storage.NewCookieStore(conf.KeyStore.Origin, nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		Metrics: m,
		db:      db,
		cookies: cookies,
		conf:    conf,
	}
	a.restoreCookie()

	// Requests share the cookie jar, so the saved key list travels with
	// them the way it would from a browser.
	hc := &http.Client{Jar: cookies.Jar()}

	var rs remote.SavedSet
	var tokens auth.TokenSource
	if conf.RemoteEnabled() {
		tokens = auth.NewStaticToken(conf.Remote.Token)
		rs = remote.NewClient(*conf.Remote, tokens, hc)
	}
	fetcher := catalog.NewClient(conf.Catalog, hc)
	a.Fetcher = fetcher

	a.Service, err = syncer.New(
		cookies,
		db,
		rs,
		fetcher,
		tokens,
		syncer.Config{
			KeyStore:    conf.KeyStore,
			Concurrency: conf.Catalog.Concurrency,
		},
		syncer.WithMetrics(m),
	)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Toggle fetches the record for key from the catalog and toggles it
func (a *App) Toggle(ctx context.Context, key saved.Key) (syncer.ToggleResult, error) {
	// Toggling needs the full record, which only the catalog has
	r, err := a.Fetcher.Fetch(ctx, key)
	if err != nil {
		return syncer.ToggleResult{}, err
	}
	return a.Service.ToggleSaved(ctx, r)
}

// Close persists the cookie jar, cleans up, and closes the database so
// BadgerDB can flush to disk.
// https://pkg.go.dev/github.com/dgraph-io/badger#readme-i-don-t-see-any-disk-writes-why
func (a *App) Close() error {
	a.persistCookie()
	// Get rid of old keys just before we close
	if err := a.db.Cleanup(); err != nil {
		log.Error().Err(err).Msg("error cleaning up the database")
	}
	return a.db.Close()
}

// Run conducts a single load, after an optional toggle, and writes the saved
// list to outwr.
func Run(outwr io.Writer, conf *userconfig.Meta, toggle string) error {
	a, err := Open(conf, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	if toggle != "" {
		key, err := saved.ParseKey(toggle)
		if err != nil {
			return err
		}
		res, err := a.Toggle(ctx, key)
		if err != nil {
			return err
		}
		log.Info().Str("key", toggle).Bool("saved", res.Saved).Msg("toggled a saved item")
	}

	records, err := a.Service.LoadSavedItems(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("count", len(records)).Msg("loaded saved items")
	return WriteRecords(outwr, records)
}

// WriteRecords prints one record per line: source publish date, key,
// category, and title.
func WriteRecords(outwr io.Writer, records []saved.Record) error {
	w := tabwriter.NewWriter(outwr, 0, 4, 2, ' ', 0)
	for _, r := range records {
		published := "-"
		if r.SourcePublishedAt != nil {
			published = r.SourcePublishedAt.Format(time.DateOnly)
		}
		k, _ := r.Key()
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", published, k, r.Category, r.Title)
	}
	return w.Flush()
}

// restoreCookie loads the key store cookie saved by a previous run. A CLI has
// no browser profile, so the database stands in for one.
func (a *App) restoreCookie() {
	name := a.conf.KeyStore.Name
	e, err := a.db.Read([]byte(cookieEntryPrefix + name))
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("can't restore the saved key cookie")
		return
	}
	if err := a.cookies.Put(storage.KVEntry{Key: []byte(name), Value: e.Value}); err != nil {
		log.Warn().Err(err).Msg("can't restore the saved key cookie")
	}
}

func (a *App) persistCookie() {
	if a.conf.OneOff {
		return
	}
	name := a.conf.KeyStore.Name
	e, err := a.cookies.Read([]byte(name))
	if errors.Is(err, storage.ErrNotFound) {
		if err := a.db.Delete([]byte(cookieEntryPrefix + name)); err != nil {
			log.Warn().Err(err).Msg("can't clear the saved key cookie")
		}
		return
	}
	err = a.db.Put(storage.KVEntry{
		Key:   []byte(cookieEntryPrefix + name),
		Value: e.Value,
		TTL:   a.conf.KeyStore.Expiry,
	})
	if err != nil {
		log.Warn().Err(err).Msg("can't persist the saved key cookie")
	}
}
