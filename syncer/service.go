package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ptgott/savedsync/auth"
	"github.com/ptgott/savedsync/catalog"
	"github.com/ptgott/savedsync/hydrate"
	"github.com/ptgott/savedsync/keystore"
	"github.com/ptgott/savedsync/legacy"
	"github.com/ptgott/savedsync/metrics"
	"github.com/ptgott/savedsync/recordcache"
	"github.com/ptgott/savedsync/remote"
	"github.com/ptgott/savedsync/saved"
	"github.com/ptgott/savedsync/storage"
	"github.com/rs/zerolog/log"
)

// Config contains settings for the Service
type Config struct {
	KeyStore keystore.Config
	// Most catalog fetches to run at once while hydrating
	Concurrency int
}

// ToggleResult reports the state of an item after a toggle
type ToggleResult struct {
	Saved bool `json:"saved"`
}

// Service is the entry point for page code. Calls are serialized, so a load
// and a toggle never interleave.
type Service struct {
	mu       sync.Mutex
	keys     *keystore.Store
	cache    *recordcache.Cache
	importer *legacy.Importer
	hydrator *hydrate.Hydrator
	remote   remote.SavedSet
	tokens   auth.TokenSource
	metrics  *metrics.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithMetrics routes the Service's counters to m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New wires a Service from its collaborators. keyMedium holds the small,
// request-attached key list. cacheMedium holds the record cache and the
// legacy blob. rs may be nil, in which case the Service is always anonymous.
func New(
	keyMedium, cacheMedium storage.KeyValue,
	rs remote.SavedSet,
	fetcher catalog.Fetcher,
	tokens auth.TokenSource,
	conf Config,
	opts ...Option,
) (*Service, error) {
	if keyMedium == nil {
		return nil, errors.New("a key store medium is required")
	}
	if cacheMedium == nil {
		return nil, errors.New("a record cache medium is required")
	}
	if fetcher == nil {
		return nil, errors.New("a catalog fetcher is required")
	}
	if tokens == nil {
		tokens = auth.NewStaticToken("")
	}

	s := &Service{
		remote: rs,
		tokens: tokens,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}

	ksConf, err := conf.KeyStore.CheckAndSetDefaults()
	if err != nil {
		return nil, err
	}

	s.cache = recordcache.New(cacheMedium, s.metrics)
	s.keys = keystore.New(keyMedium, s.cache, ksConf, s.metrics)
	s.importer = legacy.NewImporter(cacheMedium, s.keys, s.cache, s.metrics)
	s.hydrator = hydrate.New(fetcher, s.cache, conf.Concurrency, s.metrics)
	return s, nil
}

// LoadSavedItems returns every saved record, newest first. Calling it twice
// without a mutation in between returns the same sequence. The only error it
// returns is a failure to persist reconciled keys locally.
func (s *Service) LoadSavedItems(ctx context.Context) ([]saved.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	defer func() {
		s.metrics.ObserveLoadDuration(time.Since(start).Seconds())
	}()

	if _, err := s.importer.Migrate(); err != nil {
		log.Warn().Err(err).Msg("can't migrate legacy saved items")
	}

	localKeys := s.keys.Read()
	finalKeys := localKeys

	if s.authenticated() {
		merged, reconciled := s.reconcile(ctx, localKeys)
		if reconciled {
			res, err := s.keys.Write(merged)
			if err != nil {
				return nil, fmt.Errorf("can't persist reconciled saved keys: %w", err)
			}
			finalKeys = res.Kept
		}
	}
	s.metrics.SetSavedKeys(len(finalKeys))

	cached, missing := s.cache.Partition(finalKeys)
	for _, r := range s.hydrator.Hydrate(ctx, missing) {
		k, _ := r.Key()
		cached[k] = r
	}

	// Build in key order so the result never depends on which records
	// happened to be cached already
	records := make([]saved.Record, 0, len(cached))
	for _, k := range finalKeys {
		if r, ok := cached[k]; ok {
			records = append(records, r)
		}
	}
	saved.SortByRecency(records)

	log.Debug().
		Int("keys", len(finalKeys)).
		Int("hydrated", len(missing)).
		Int("records", len(records)).
		Msg("loaded saved items")
	return records, nil
}

// reconcile merges the local keys with the server's. Local keys keep their
// order and keys only the server has are appended as the newest. The second
// return value is false when the server couldn't be reached, in which case
// this load proceeds as if nobody were signed in.
func (s *Service) reconcile(ctx context.Context, localKeys []saved.Key) ([]saved.Key, bool) {
	serverKeys, err := s.remote.ListKeys(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("can't list server saved keys; using local keys only")
		s.metrics.RecordRemoteFailure(metrics.OpListKeys)
		return localKeys, false
	}

	missingOnServer := saved.Difference(localKeys, serverKeys)
	if len(missingOnServer) == 0 {
		return saved.Union(localKeys, serverKeys), true
	}

	result, err := s.remote.ImportKeys(ctx, missingOnServer)
	if err != nil {
		log.Warn().
			Err(err).
			Int("count", len(missingOnServer)).
			Msg("can't import local saved keys to the server")
		s.metrics.RecordRemoteFailure(metrics.OpImportKeys)
		result = serverKeys
	}
	// Local keys are kept even if the server dropped some of them
	return saved.Union(localKeys, result), true
}

// ToggleSaved saves the item described by r if it isn't saved, and unsaves it
// otherwise. Saving caches r so the next load needs no fetch. When someone is
// signed in the server is updated too, but a server failure doesn't affect the
// result. An error means r is invalid or the key store couldn't be written.
func (s *Service) ToggleSaved(ctx context.Context, r saved.Record) (ToggleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.Validate(); err != nil {
		return ToggleResult{}, fmt.Errorf("can't toggle an invalid record: %w", err)
	}
	key, _ := r.Key()

	wasSaved := false
	for _, k := range s.keys.Read() {
		if k == key {
			wasSaved = true
			break
		}
	}
	if !wasSaved {
		if err := s.cache.Put(r); err != nil {
			log.Warn().Err(err).Str("key", string(key)).Msg("can't cache a newly saved record")
		}
	}

	nowSaved, err := s.keys.Toggle(key)
	if err != nil {
		if !wasSaved {
			// No key points at the record we just cached
			if err := s.cache.Delete(key); err != nil {
				log.Warn().Err(err).Str("key", string(key)).Msg("can't uncache a record after a failed save")
			}
		}
		return ToggleResult{Saved: wasSaved}, err
	}
	s.metrics.SetSavedKeys(len(s.keys.Read()))

	if s.authenticated() {
		s.pushToggle(ctx, key, nowSaved)
	}
	return ToggleResult{Saved: nowSaved}, nil
}

// pushToggle mirrors a toggle on the server, best effort
func (s *Service) pushToggle(ctx context.Context, key saved.Key, nowSaved bool) {
	op := metrics.OpRemoveKey
	push := s.remote.RemoveKey
	if nowSaved {
		op = metrics.OpAddKey
		push = s.remote.AddKey
	}
	if err := push(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", string(key)).Str("op", op).Msg("can't sync a toggle to the server")
		s.metrics.RecordRemoteFailure(op)
	}
}

// authenticated reports whether remote calls should be made at all
func (s *Service) authenticated() bool {
	if s.remote == nil {
		return false
	}
	_, ok := s.tokens.Token()
	return ok
}
