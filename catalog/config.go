package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 8
)

// Config contains settings for the catalog API
type Config struct {
	BaseURL *url.URL
	Timeout time.Duration
	// Most item fetches to run at once while hydrating
	Concurrency int
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing errors.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("can't parse the catalog config: %v", err)
	}

	if s, ok := v["baseURL"]; ok {
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("can't parse the catalog base URL: %v", err)
		}
		c.BaseURL = u
	}

	if s, ok := v["timeout"]; ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("can't parse the catalog timeout as a duration: %v", err)
		}
		c.Timeout = d
	}

	if s, ok := v["concurrency"]; ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("can't parse the catalog concurrency as an integer")
		}
		c.Concurrency = n
	}
	return nil
}

// CheckAndSetDefaults validates c and either returns a copy of c with default
// settings applied or returns an error due to an invalid configuration
func (c *Config) CheckAndSetDefaults() (Config, error) {
	if c.BaseURL == nil || c.BaseURL.Host == "" {
		return Config{}, errors.New("the catalog config must include a base URL with a host")
	}
	if c.Timeout < 0 || c.Concurrency < 0 {
		return Config{}, errors.New("the catalog timeout and concurrency can't be negative")
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	return *c, nil
}
