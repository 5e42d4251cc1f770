package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/alecthomas/units"
)

// ErrNotFound is returned by KeyValue.Read when there is no entry for a key.
var ErrNotFound = errors.New("entry not found")

// defaultValueLogFileSize is the BadgerDB value log size used when a config
// doesn't specify one
const defaultValueLogFileSize = 64 * units.MiB

// KVConfig contains settings specific to BadgerDB connections
type KVConfig struct {
	StorageDirPath string `yaml:"storageDir" json:"storageDir"`
	// TTL applied to entries that don't carry their own. Zero means entries
	// never expire.
	KeyTTLDuration time.Duration `yaml:"keyTTL" json:"keyTTL"`
	// Size of each BadgerDB value log file
	ValueLogFileSize units.Base2Bytes `yaml:"valueLogFileSize" json:"valueLogFileSize"`
}

// UnmarshalYAML parses a user-provided YAML configuration. Only the storage
// directory is required. An empty storage directory is allowed here, and means
// that the caller should keep records in memory.
func (c *KVConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("can't parse the storage config: %v", err)
	}

	c.StorageDirPath = v["storageDir"]

	if t, ok := v["keyTTL"]; ok {
		d, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("can't parse the key TTL as a duration: %v", err)
		}
		c.KeyTTLDuration = d
	}

	if s, ok := v["valueLogFileSize"]; ok {
		b, err := units.ParseStrictBytes(s)
		if err != nil {
			return fmt.Errorf("can't parse the value log file size: %v", err)
		}
		c.ValueLogFileSize = units.Base2Bytes(b)
	}

	return nil
}

// CheckAndSetDefaults validates c and returns a copy with defaults applied
func (c *KVConfig) CheckAndSetDefaults() (KVConfig, error) {
	if c.KeyTTLDuration < 0 {
		return KVConfig{}, errors.New("the key TTL can't be negative")
	}
	if c.ValueLogFileSize < 0 {
		return KVConfig{}, errors.New("the value log file size can't be negative")
	}
	if c.ValueLogFileSize == 0 {
		c.ValueLogFileSize = defaultValueLogFileSize
	}
	return *c, nil
}

// KeyValue exposes a common interface for reading and writing whole blobs in
// an underlying storage medium.
//
// Implementations need to include connection logic in code to initialize
// a Store.
type KeyValue interface {
	// Replace the value of an entry or create a new one if it doesn't exist
	Put(KVEntry) error
	// Return an entry given its key. Returns ErrNotFound if there is none.
	Read(key []byte) (KVEntry, error)
	// Remove an entry. Deleting a missing key isn't an error.
	Delete(key []byte) error
	// Cleanup performs routine deletion of old records.
	Cleanup() error
	// Drain/tear down the connection, or something analogous for
	// an embedded database
	Close() error
}

// KVEntry is what we'll write to and read from the KV store
type KVEntry struct {
	Key   []byte
	Value []byte
	// How long the entry should live. Zero defers to the store's default.
	TTL time.Duration
}
