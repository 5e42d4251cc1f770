package userconfig

import (
	"errors"
	"fmt"
	"io"

	"github.com/ptgott/savedsync/catalog"
	"github.com/ptgott/savedsync/keystore"
	"github.com/ptgott/savedsync/remote"
	"github.com/ptgott/savedsync/storage"
	"github.com/rs/zerolog/log"

	yaml "gopkg.in/yaml.v2"
)

// Meta represents all current config options that the application can use,
// i.e., after validation and parsing
type Meta struct {
	KeyStore    keystore.Config  `yaml:"keyStore"`
	RecordCache storage.KVConfig `yaml:"recordCache"`
	// Optional. Without it, nobody is ever signed in.
	Remote  *remote.Config `yaml:"remote"`
	Catalog catalog.Config `yaml:"catalog"`
	Metrics Metrics        `yaml:"metrics"`
	// Set from the command line. Nothing is read from or written to the
	// local database.
	OneOff bool `yaml:"-"`
}

// Metrics contains options for exporting Prometheus metrics
type Metrics struct {
	// Address to serve /metrics on. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// RemoteEnabled reports whether the config describes a remote saved-set API
func (m *Meta) RemoteEnabled() bool {
	return m.Remote != nil && m.Remote.BaseURL != nil
}

// CheckAndSetDefaults validates m and either returns a copy of m with default
// settings applied or returns an error due to an invalid configuration
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := Meta{
		Metrics: m.Metrics,
		OneOff:  m.OneOff,
	}

	ks, err := m.KeyStore.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	if ks.Origin == nil {
		return Meta{}, errors.New("the keyStore section must include an origin")
	}
	c.KeyStore = ks

	rc, err := m.RecordCache.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.RecordCache = rc

	cat, err := m.Catalog.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.Catalog = cat

	if m.RemoteEnabled() {
		r, err := m.Remote.CheckAndSetDefaults()
		if err != nil {
			return Meta{}, err
		}
		c.Remote = &r
	}

	return c, nil

}

// Parse generates usable configurations from possibly arbitrary user input.
// An error indicates a problem with parsing or validation. The Reader r
// can be either JSON or YAML.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	if m.Catalog.BaseURL == nil {
		return &Meta{}, errors.New("must include a \"catalog\" section with a baseURL")
	}

	if m.KeyStore.Origin == nil {
		return &Meta{}, errors.New("must include a \"keyStore\" section with an origin")
	}

	if m.RecordCache.StorageDirPath == "" {
		log.Debug().Msg(
			"no record cache storage directory, so records will be kept in memory",
		)
	}

	return &m, nil

}
