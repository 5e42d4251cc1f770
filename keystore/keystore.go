package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/ptgott/savedsync/metrics"
	"github.com/ptgott/savedsync/saved"
	"github.com/ptgott/savedsync/storage"
	"github.com/rs/zerolog/log"
)

// RecordCache is the part of the record cache that the key store keeps in
// step with its own contents. Records are removed when their keys leave the
// store.
type RecordCache interface {
	DeleteMany(keys []saved.Key) error
}

// Store is the ordered, size-bounded list of saved keys. Order is insertion
// order, oldest first.
type Store struct {
	medium  storage.KeyValue
	cache   RecordCache
	conf    Config
	metrics *metrics.Metrics
}

// WriteResult reports what a write persisted
type WriteResult struct {
	// Keys persisted, oldest first
	Kept []saved.Key
	// Keys dropped to fit the size budget, oldest first
	Evicted []saved.Key
}

// New returns a Store that persists to medium. cache may be nil.
func New(medium storage.KeyValue, cache RecordCache, conf Config, m *metrics.Metrics) *Store {
	if m == nil {
		m = metrics.Nop()
	}
	return &Store{
		medium:  medium,
		cache:   cache,
		conf:    conf,
		metrics: m,
	}
}

// Read returns the persisted keys, oldest first. A missing or malformed blob
// reads as an empty list.
func (s *Store) Read() []saved.Key {
	e, err := s.medium.Read([]byte(s.conf.Name))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Str("store", s.conf.Name).Msg("can't read the saved key store")
		}
		return []saved.Key{}
	}

	raw, err := decode(e.Value)
	if err != nil {
		log.Debug().Err(err).Str("store", s.conf.Name).Msg("treating a malformed key store as empty")
		s.metrics.RecordMalformed(metrics.StoreKeys)
		return []saved.Key{}
	}

	keys, dropped := saved.ParseKeys(raw)
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("dropped malformed saved keys")
	}
	return saved.Dedupe(keys)
}

// Write deduplicates keys, keeping the first occurrence of each, and persists
// them. If the encoded list is over budget, the oldest keys are dropped until
// it fits or one key remains. Records for dropped keys are removed from the
// record cache.
func (s *Store) Write(keys []saved.Key) (WriteResult, error) {
	kept := saved.Dedupe(keys)
	var evicted []saved.Key

	blob, err := encode(kept)
	if err != nil {
		return WriteResult{}, err
	}
	for int64(len(blob)) > s.conf.MaxSize && len(kept) > 1 {
		evicted = append(evicted, kept[0])
		kept = kept[1:]
		blob, err = encode(kept)
		if err != nil {
			return WriteResult{}, err
		}
	}

	if len(evicted) > 0 {
		log.Debug().
			Int("evicted", len(evicted)).
			Int("kept", len(kept)).
			Str("budget", s.conf.String()).
			Msg("trimmed the oldest saved keys")
		s.metrics.RecordEvictions(len(evicted))
	}

	err = s.medium.Put(storage.KVEntry{
		Key:   []byte(s.conf.Name),
		Value: blob,
		TTL:   s.conf.Expiry,
	})
	if err != nil {
		return WriteResult{}, fmt.Errorf("can't persist the saved keys: %w", err)
	}

	if len(evicted) > 0 {
		s.forget(evicted)
	}

	return WriteResult{Kept: kept, Evicted: evicted}, nil
}

// Toggle removes key if it is saved and appends it otherwise. It reports
// whether key is saved afterward. Removing a key also removes its record
// from the record cache.
func (s *Store) Toggle(key saved.Key) (bool, error) {
	keys := s.Read()
	idx := -1
	for i, k := range keys {
		if k == key {
			idx = i
			break
		}
	}

	if idx >= 0 {
		next := make([]saved.Key, 0, len(keys)-1)
		next = append(next, keys[:idx]...)
		next = append(next, keys[idx+1:]...)
		if _, err := s.Write(next); err != nil {
			return true, err
		}
		s.forget([]saved.Key{key})
		return false, nil
	}

	// Trimming drops from the front, so the new key always survives.
	if _, err := s.Write(append(keys, key)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) forget(keys []saved.Key) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteMany(keys); err != nil {
		log.Warn().Err(err).Int("count", len(keys)).Msg("can't remove unsaved records from the cache")
	}
}

// encode serializes keys as a JSON array escaped for use as a cookie value
func encode(keys []saved.Key) ([]byte, error) {
	b, err := json.Marshal(saved.Strings(keys))
	if err != nil {
		return nil, fmt.Errorf("can't encode the saved keys: %v", err)
	}
	return []byte(url.QueryEscape(string(b))), nil
}

func decode(blob []byte) ([]string, error) {
	s, err := url.QueryUnescape(string(blob))
	if err != nil {
		return nil, err
	}
	var raw []string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
