package adsession

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// ldapDialer opens go-ldap backed handles.
type ldapDialer struct {
	timeout time.Duration
}

// NewDialer returns the production Dialer backed by go-ldap. The timeout
// bounds both the dial and subsequent network calls on the handle.
func NewDialer(timeout time.Duration) Dialer {
	return &ldapDialer{timeout: timeout}
}

func (d *ldapDialer) Open(ctx context.Context, host string, port int) (Conn, error) {
	if host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}

	url := fmt.Sprintf("ldap://%s", net.JoinHostPort(host, strconv.Itoa(port)))

	dialer := &net.Dialer{Timeout: d.timeout}
	conn, err := ldap.DialURL(url, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	if d.timeout > 0 {
		conn.SetTimeout(d.timeout)
	}

	// Dial honours ctx only through the dialer timeout; go-ldap has no
	// per-dial context hook.
	_ = ctx

	return &ldapConn{conn: conn}, nil
}

// ldapConn adapts *ldap.Conn to the Conn capability.
type ldapConn struct {
	conn     *ldap.Conn
	controls []ldap.Control
	timeout  time.Duration
}

func (c *ldapConn) SetOption(key Option, value any) error {
	switch key {
	case OptionProtocolVersion:
		// go-ldap speaks v3 only; anything else is a misconfigured handle.
		v, ok := value.(int)
		if !ok || v != protocolVersion {
			return ldap.NewError(ldap.LDAPResultNotSupported,
				fmt.Errorf("protocol version %v not supported", value))
		}
		return nil

	case OptionReferrals:
		// go-ldap never follows referrals on its own, so disabling them is
		// already the transport's behaviour.
		if v, ok := value.(bool); !ok || v {
			return ldap.NewError(ldap.LDAPResultNotSupported,
				fmt.Errorf("automatic referral chasing is not supported"))
		}
		return nil

	case OptionNetworkTimeout:
		v, ok := value.(time.Duration)
		if !ok {
			return ldap.NewError(ldap.LDAPResultParamError,
				fmt.Errorf("network_timeout requires a time.Duration, got %T", value))
		}
		c.timeout = v
		c.conn.SetTimeout(v)
		return nil

	case OptionServerControls:
		v, ok := value.([]ldap.Control)
		if !ok {
			return ldap.NewError(ldap.LDAPResultParamError,
				fmt.Errorf("server_controls requires []ldap.Control, got %T", value))
		}
		c.controls = v
		return nil

	default:
		return ldap.NewError(ldap.LDAPResultParamError,
			fmt.Errorf("unknown connection option %q", key))
	}
}

func (c *ldapConn) StartTLS(cfg *tls.Config) error {
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return c.conn.StartTLS(cfg)
}

func (c *ldapConn) Bind(username, password string) error {
	if username == "" && password == "" {
		return c.conn.UnauthenticatedBind("")
	}
	return c.conn.Bind(username, password)
}

func (c *ldapConn) GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal string) error {
	return c.conn.GSSAPIBind(client, servicePrincipal, "")
}

func (c *ldapConn) ReadEntry(base string, attributes []string) (*ldap.Entry, error) {
	timeLimit := 10
	if c.timeout > 0 {
		timeLimit = int(c.timeout.Seconds())
	}

	searchReq := ldap.NewSearchRequest(
		base,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, timeLimit, false,
		"(objectClass=*)",
		attributes,
		c.controls,
	)

	result, err := c.conn.Search(searchReq)
	if err != nil {
		return nil, err
	}

	if len(result.Entries) == 0 {
		return nil, ldap.NewError(ldap.LDAPResultNoResultsReturned,
			fmt.Errorf("no entry found at base %q", base))
	}

	return result.Entries[0], nil
}

func (c *ldapConn) Close() error {
	return c.conn.Close()
}
