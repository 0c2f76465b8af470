package adsession

import (
	"context"
	"crypto/tls"

	"github.com/go-ldap/ldap/v3"
)

// Option identifies a native connection option.
type Option string

const (
	// OptionProtocolVersion is pinned to protocol version 3 on every
	// session and cannot be overridden through configuration.
	OptionProtocolVersion Option = "protocol_version"

	// OptionReferrals is pinned to false: the transport never chases
	// referrals automatically. Cross-server redirection is explicit, via
	// Session.Redirect.
	OptionReferrals Option = "referrals"

	// OptionNetworkTimeout bounds individual network calls on the handle.
	// Value is a time.Duration.
	OptionNetworkTimeout Option = "network_timeout"

	// OptionServerControls carries the active extended-control list as a
	// single option, re-applied in full on every registry mutation. Value
	// is []ldap.Control.
	OptionServerControls Option = "server_controls"
)

// protocolVersion is the only protocol major version this package speaks.
const protocolVersion = 3

// pinnedOptions returns the option entries every session carries with fixed
// values. Kept as a constructor rather than a shared map so sessions never
// alias pinned state.
func pinnedOptions() map[Option]any {
	return map[Option]any{
		OptionProtocolVersion: protocolVersion,
		OptionReferrals:       false,
	}
}

// Conn is the directory client capability: the set of primitives the session
// orchestrates on an open native handle. Implementations wrap a concrete
// directory client; they never interpret session state.
type Conn interface {
	// SetOption applies a native connection option to the handle.
	SetOption(key Option, value any) error

	// StartTLS upgrades the connection to TLS in-band.
	StartTLS(cfg *tls.Config) error

	// Bind authenticates on the handle. Empty username and password is an
	// anonymous bind.
	Bind(username, password string) error

	// GSSAPIBind authenticates on the handle via Kerberos.
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal string) error

	// ReadEntry reads a single entry at base with the requested attributes.
	// Used only for the RootDSE load.
	ReadEntry(base string, attributes []string) (*ldap.Entry, error)

	// Close releases the handle. Safe to call once per handle.
	Close() error
}

// Dialer opens native handles. The zero value of the package default is a
// go-ldap backed dialer; tests substitute fakes.
type Dialer interface {
	Open(ctx context.Context, host string, port int) (Conn, error)
}
