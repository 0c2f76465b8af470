package adsession

import (
	"crypto/tls"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/creasty/defaults"
	"github.com/hashicorp/go-hclog"
)

// Config holds the parameters used to establish a session. Domain and Port
// become immutable on the resulting Session; the remaining fields are
// runtime collaborators and authentication settings.
type Config struct {
	// Connection settings
	Domain      string        // Directory server network name
	Port        int           `default:"389"` // Directory server port
	DiscoverSRV bool          // Resolve host/port via DNS SRV instead of Domain:Port
	Timeout     time.Duration `default:"30s"` // Network timeout for dial and per-call deadlines

	// Options holds user-supplied native connection options, applied at
	// bind time. Entries for the pinned keys (protocol version, referrals)
	// are ignored.
	Options map[Option]any

	// TLS settings
	TLSConfig *tls.Config // TLS configuration used by StartTLS

	// Kerberos settings, used by BindGSSAPI
	KerberosRealm  string // Kerberos realm (derived from the principal when it contains @)
	KerberosKeytab string // Path to a keytab file
	KerberosCCache string // Path to a credential cache
	KerberosConfig string // Path to krb5.conf (defaults to /etc/krb5.conf)
	KerberosSPN    string // Explicit service principal override

	// Collaborators
	Dialer Dialer       // Handle factory; nil selects the go-ldap dialer
	Logger hclog.Logger // Structured logger; nil disables logging
}

// DefaultConfig returns a configuration with defaults applied and no domain
// set.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.MustSet(cfg)
	cfg.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return cfg
}

// normalize applies defaults and fills in runtime collaborators.
func (c *Config) normalize() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}

	if c.Dialer == nil {
		c.Dialer = NewDialer(c.Timeout)
	}

	return nil
}

// validate checks the configuration before dialing.
func (c *Config) validate() error {
	if c.Domain == "" {
		return errors.New("domain cannot be empty")
	}

	if !c.DiscoverSRV && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	return nil
}

// clone returns a copy with its own Options map, for Redirect and Resume.
func (c *Config) clone() *Config {
	dup := *c
	if c.Options != nil {
		dup.Options = maps.Clone(c.Options)
	}
	if c.TLSConfig != nil {
		dup.TLSConfig = c.TLSConfig.Clone()
	}
	return &dup
}
