package keystore

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	units "github.com/docker/go-units"
)

const (
	// The serialized key list must fit in a cookie alongside its name and
	// attributes, so stay well under 4KB.
	defaultMaxSize int64         = 3500
	defaultExpiry  time.Duration = 365 * 24 * time.Hour
	defaultName    string        = "saved_keys"
)

// Config contains settings for the key store
type Config struct {
	// Most bytes the encoded key list may occupy
	MaxSize int64
	// How long the blob persists after each write
	Expiry time.Duration
	// Name of the blob within its medium, i.e., the cookie name
	Name string
	// Origin the blob is scoped to
	Origin *url.URL
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing errors.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the key store config: %v", err)
	}

	if s, ok := v["maxSize"]; ok {
		n, err := units.FromHumanSize(s)
		if err != nil {
			return fmt.Errorf("can't parse the key store size limit: %v", err)
		}
		c.MaxSize = n
	}

	if s, ok := v["expiry"]; ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("can't parse the key store expiry as a duration: %v", err)
		}
		c.Expiry = d
	}

	c.Name = v["cookieName"]

	if s, ok := v["origin"]; ok {
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("can't parse the key store origin: %v", err)
		}
		c.Origin = u
	}

	return nil
}

// CheckAndSetDefaults validates c and either returns a copy of c with default
// settings applied or returns an error due to an invalid configuration
func (c *Config) CheckAndSetDefaults() (Config, error) {
	if c.MaxSize < 0 || c.Expiry < 0 {
		return Config{}, errors.New("the key store size limit and expiry can't be negative")
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaultMaxSize
	}
	if c.Expiry == 0 {
		c.Expiry = defaultExpiry
	}
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.Origin != nil && (c.Origin.Scheme == "" || c.Origin.Host == "") {
		return Config{}, fmt.Errorf("the key store origin %v needs a scheme and a host", c.Origin)
	}
	return *c, nil
}

// String describes the budget for log messages
func (c Config) String() string {
	return fmt.Sprintf("%v (%v, expires after %v)", c.Name, units.HumanSize(float64(c.MaxSize)), c.Expiry)
}
