package adsession

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// fakeConn records every capability call so tests can assert on session
// orchestration without a live directory server.
type fakeConn struct {
	options      map[Option]any
	optionCalls  []Option
	setOptionErr map[Option]error

	bindCalls int
	bindUser  string
	bindPass  string
	bindErr   error

	gssapiCalls int
	gssapiErr   error

	tlsStarted bool
	tlsErr     error

	rootEntry *ldap.Entry
	readErr   error
	readCalls int
	readAttrs []string

	closeCalls int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		options:   make(map[Option]any),
		rootEntry: fakeRootDSEEntry(),
	}
}

func (c *fakeConn) SetOption(key Option, value any) error {
	c.optionCalls = append(c.optionCalls, key)
	if err := c.setOptionErr[key]; err != nil {
		return err
	}
	c.options[key] = value
	return nil
}

func (c *fakeConn) StartTLS(cfg *tls.Config) error {
	if c.tlsErr != nil {
		return c.tlsErr
	}
	c.tlsStarted = true
	return nil
}

func (c *fakeConn) Bind(username, password string) error {
	c.bindCalls++
	c.bindUser, c.bindPass = username, password
	return c.bindErr
}

func (c *fakeConn) GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal string) error {
	c.gssapiCalls++
	return c.gssapiErr
}

func (c *fakeConn) ReadEntry(base string, attributes []string) (*ldap.Entry, error) {
	c.readCalls++
	c.readAttrs = attributes
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.rootEntry, nil
}

func (c *fakeConn) Close() error {
	c.closeCalls++
	return nil
}

// fakeDialer hands out fakeConns and records every endpoint dialed.
type fakeDialer struct {
	openErr error
	opened  []string
	conns   []*fakeConn

	// setup, when non-nil, customizes each new connection.
	setup func(*fakeConn)
}

func (d *fakeDialer) Open(ctx context.Context, host string, port int) (Conn, error) {
	d.opened = append(d.opened, fmt.Sprintf("%s:%d", host, port))
	if d.openErr != nil {
		return nil, d.openErr
	}

	conn := newFakeConn()
	if d.setup != nil {
		d.setup(conn)
	}
	d.conns = append(d.conns, conn)
	return conn, nil
}

// last returns the most recently opened connection.
func (d *fakeDialer) last() *fakeConn {
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

const (
	testControlPaging  = "1.2.840.113556.1.4.319"
	testControlShowDel = "1.2.840.113556.1.4.417"
)

func fakeRootDSEEntry() *ldap.Entry {
	return ldap.NewEntry("", map[string][]string{
		"dnsHostName":                {"dc1.example.com"},
		"defaultNamingContext":       {"DC=example,DC=com"},
		"rootDomainNamingContext":    {"DC=example,DC=com"},
		"configurationNamingContext": {"CN=Configuration,DC=example,DC=com"},
		"schemaNamingContext":        {"CN=Schema,CN=Configuration,DC=example,DC=com"},
		"highestCommittedUSN":        {"123456"},
		"supportedControl":           {testControlPaging, testControlShowDel},
		"supportedLDAPVersion":       {"3", "2"},
		"supportedSASLMechanisms":    {"GSSAPI", "GSS-SPNEGO", "EXTERNAL"},
		"currentTime":                {"20260829120000.0Z"},
	})
}

func testConfig(dialer *fakeDialer) *Config {
	return &Config{
		Domain: "dc1.example.com",
		Port:   389,
		Dialer: dialer,
	}
}
