package remote

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const defaultTimeout = 5 * time.Second

// Config contains settings for the remote saved-set API
type Config struct {
	BaseURL *url.URL
	Timeout time.Duration
	// Bearer token for the signed-in person. Empty means anonymous.
	Token string
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing errors.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("can't parse the remote config: %v", err)
	}

	if s, ok := v["baseURL"]; ok {
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("can't parse the remote base URL: %v", err)
		}
		c.BaseURL = u
	}

	if s, ok := v["timeout"]; ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("can't parse the remote timeout as a duration: %v", err)
		}
		c.Timeout = d
	}

	c.Token = v["token"]
	return nil
}

// CheckAndSetDefaults validates c and either returns a copy of c with default
// settings applied or returns an error due to an invalid configuration
func (c *Config) CheckAndSetDefaults() (Config, error) {
	if c.BaseURL == nil || c.BaseURL.Host == "" {
		return Config{}, errors.New("the remote config must include a base URL with a host")
	}
	if c.Timeout < 0 {
		return Config{}, errors.New("the remote timeout can't be negative")
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return *c, nil
}
