package legacy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ptgott/savedsync/keystore"
	"github.com/ptgott/savedsync/metrics"
	"github.com/ptgott/savedsync/saved"
	"github.com/ptgott/savedsync/storage"
	"github.com/rs/zerolog/log"
)

// DefaultName is the entry the old format was stored under
const DefaultName = "saved_items"

// KeyStore is the part of the key store that migration writes to
type KeyStore interface {
	Read() []saved.Key
	Write(keys []saved.Key) (keystore.WriteResult, error)
}

// RecordCache is the part of the record cache that migration writes to
type RecordCache interface {
	Partition(keys []saved.Key) (map[saved.Key]saved.Record, []saved.Key)
	PutMany(records []saved.Record) error
}

// legacyRecord is an entry of the old array. Older entries named the item ID
// "id" rather than "itemId".
type legacyRecord struct {
	saved.Record
	ID string `json:"id"`
}

// Importer moves legacy saved items into the current stores
type Importer struct {
	medium  storage.KeyValue
	keys    KeyStore
	cache   RecordCache
	name    []byte
	metrics *metrics.Metrics
}

// NewImporter returns an Importer that reads the legacy blob from medium
func NewImporter(medium storage.KeyValue, keys KeyStore, cache RecordCache, m *metrics.Metrics) *Importer {
	if m == nil {
		m = metrics.Nop()
	}
	return &Importer{
		medium:  medium,
		keys:    keys,
		cache:   cache,
		name:    []byte(DefaultName),
		metrics: m,
	}
}

// Migrate imports the legacy blob if there is one and reports how many
// records it imported. Legacy keys count as older than any key already in
// the key store, so they are the first to be trimmed if the budget is
// exceeded. The legacy blob is deleted only after both stores are written.
func (im *Importer) Migrate() (int, error) {
	e, err := im.medium.Read(im.name)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("can't read the legacy saved items: %w", err)
	}

	var entries []legacyRecord
	if err := json.Unmarshal(e.Value, &entries); err != nil {
		// There's nothing we can recover from the blob, and leaving it in
		// place means failing to parse it on every load.
		log.Debug().Err(err).Msg("discarding malformed legacy saved items")
		im.metrics.RecordMalformed(metrics.StoreLegacy)
		return 0, im.medium.Delete(im.name)
	}

	records := make([]saved.Record, 0, len(entries))
	keys := make([]saved.Key, 0, len(entries))
	for _, le := range entries {
		r := le.Record
		if r.ItemID == "" {
			r.ItemID = le.ID
		}
		if err := r.Validate(); err != nil {
			log.Debug().Err(err).Msg("skipping an invalid legacy saved item")
			continue
		}
		k, _ := r.Key()
		records = append(records, r)
		keys = append(keys, k)
	}

	if len(records) > 0 {
		// Records already cached are newer than the legacy snapshot
		cached, _ := im.cache.Partition(keys)
		fresh := make([]saved.Record, 0, len(records))
		for i, r := range records {
			if _, ok := cached[keys[i]]; !ok {
				fresh = append(fresh, r)
			}
		}

		// Cache first so that records for keys trimmed by the write are
		// removed along with them.
		if err := im.cache.PutMany(fresh); err != nil {
			return 0, err
		}
		if _, err := im.keys.Write(saved.Union(keys, im.keys.Read())); err != nil {
			return 0, err
		}
	}

	if err := im.medium.Delete(im.name); err != nil {
		return 0, fmt.Errorf("can't delete the legacy saved items: %w", err)
	}

	if len(entries) > 0 {
		log.Info().Int("count", len(records)).Msg("migrated legacy saved items")
		im.metrics.RecordMigration()
	}
	return len(records), nil
}
