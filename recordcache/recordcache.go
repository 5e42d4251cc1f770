package recordcache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ptgott/savedsync/metrics"
	"github.com/ptgott/savedsync/saved"
	"github.com/ptgott/savedsync/storage"
	"github.com/rs/zerolog/log"
)

// DefaultName is the entry that holds the whole mapping
const DefaultName = "saved_records"

// Cache maps saved keys to records. Every mutation reads, modifies, and
// writes the whole mapping.
type Cache struct {
	medium  storage.KeyValue
	name    []byte
	metrics *metrics.Metrics
}

// New returns a Cache that persists to medium under DefaultName
func New(medium storage.KeyValue, m *metrics.Metrics) *Cache {
	if m == nil {
		m = metrics.Nop()
	}
	return &Cache{
		medium:  medium,
		name:    []byte(DefaultName),
		metrics: m,
	}
}

// Get returns the record for key, if there is one
func (c *Cache) Get(key saved.Key) (saved.Record, bool) {
	r, ok := c.load()[key]
	return r, ok
}

// Partition splits keys into those with cached records and those without.
// Both results keep the order of keys.
func (c *Cache) Partition(keys []saved.Key) (map[saved.Key]saved.Record, []saved.Key) {
	all := c.load()
	cached := make(map[saved.Key]saved.Record, len(keys))
	var missing []saved.Key
	for _, k := range keys {
		if r, ok := all[k]; ok {
			cached[k] = r
			continue
		}
		missing = append(missing, k)
	}
	return cached, missing
}

// Keys returns every key with a cached record, in no particular order
func (c *Cache) Keys() []saved.Key {
	all := c.load()
	keys := make([]saved.Key, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	return keys
}

// Put stores a single record under its own key
func (c *Cache) Put(r saved.Record) error {
	return c.PutMany([]saved.Record{r})
}

// PutMany stores records in one write. Invalid records are rejected before
// anything is written.
func (c *Cache) PutMany(records []saved.Record) error {
	if len(records) == 0 {
		return nil
	}
	all := c.load()
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("can't cache record %v:%v: %w", r.Region, r.ItemID, err)
		}
		k, _ := r.Key()
		all[k] = r
	}
	return c.save(all)
}

// Delete removes the record for key
func (c *Cache) Delete(key saved.Key) error {
	return c.DeleteMany([]saved.Key{key})
}

// DeleteMany removes the records for keys in one write
func (c *Cache) DeleteMany(keys []saved.Key) error {
	all := c.load()
	n := len(all)
	for _, k := range keys {
		delete(all, k)
	}
	if len(all) == n {
		return nil
	}
	return c.save(all)
}

// load reads the whole mapping. A missing or malformed blob reads as empty,
// and entries that don't decode into valid records are dropped.
func (c *Cache) load() map[saved.Key]saved.Record {
	out := make(map[saved.Key]saved.Record)

	e, err := c.medium.Read(c.name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("can't read the record cache")
		}
		return out
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(e.Value, &raw); err != nil {
		log.Debug().Err(err).Msg("treating a malformed record cache as empty")
		c.metrics.RecordMalformed(metrics.StoreRecords)
		return out
	}

	for s, v := range raw {
		var r saved.Record
		if err := json.Unmarshal(v, &r); err != nil {
			log.Debug().Str("key", s).Err(err).Msg("dropping an undecodable cached record")
			continue
		}
		k, err := r.Key()
		if err != nil || r.Validate() != nil || string(k) != s {
			log.Debug().Str("key", s).Msg("dropping an invalid cached record")
			continue
		}
		out[k] = r
	}
	return out
}

func (c *Cache) save(all map[saved.Key]saved.Record) error {
	b, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("can't encode the record cache: %v", err)
	}
	if err := c.medium.Put(storage.KVEntry{Key: c.name, Value: b}); err != nil {
		return fmt.Errorf("can't persist the record cache: %w", err)
	}
	return nil
}
