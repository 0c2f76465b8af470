package adsession

import (
	"context"
	"maps"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// credentials is the (username, password) pair retained only while a session
// is live and bound. It is cleared unconditionally on suspend.
type credentials struct {
	username string
	password string
}

// Session owns one native directory connection together with its
// configuration, authentication state, extended-control registry, and
// RootDSE cache.
//
// A Session is not safe for concurrent use from multiple goroutines without
// external synchronization: the handle and the mutable fields carry no
// internal locking. Every operation is a synchronous, blocking call into the
// underlying directory client.
type Session struct {
	id     string
	domain string
	port   int

	cfg    *Config
	logger hclog.Logger

	handle     Conn
	pinned     map[Option]any
	options    map[Option]any // user-supplied; pinned keys never appear here
	controls   ControlRegistry
	rootDSE    *RootDSE
	creds      *credentials
	viaGSSAPI  bool
	tlsEnabled bool
	bound      bool
	suspended  bool
	closed     bool
}

// Connect establishes a session: it acquires a native handle for the
// configured server, pins the protocol version, disables automatic referral
// chasing, and stores the user-supplied options for application at bind
// time. When cfg.DiscoverSRV is set the endpoint is resolved through DNS SRV
// records first.
//
// Failure to open the handle surfaces as a connectivity error.
func Connect(ctx context.Context, cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		// Work on a copy so defaults and collaborators are filled in
		// without mutating the caller's configuration.
		cfg = cfg.clone()
	}

	if err := cfg.normalize(); err != nil {
		return nil, newConfigError("connect", err.Error())
	}
	if err := cfg.validate(); err != nil {
		return nil, newConfigError("connect", err.Error())
	}

	id := uuid.New().String()
	logger := cfg.Logger.With("session_id", id)

	host, port := cfg.Domain, cfg.Port
	if cfg.DiscoverSRV {
		servers, err := NewSRVDiscovery(logger).DiscoverServers(ctx, cfg.Domain)
		if err != nil {
			return nil, &DirectoryError{
				Op:      "connect",
				Kind:    KindConnectivity,
				Message: err.Error(),
				Cause:   err,
			}
		}
		host, port = servers[0].Host, servers[0].Port
		logger.Debug("resolved directory server via SRV",
			"domain", cfg.Domain, "host", host, "port", port)
	}

	s := &Session{
		id:      id,
		domain:  host,
		port:    port,
		cfg:     cfg,
		logger:  logger,
		pinned:  pinnedOptions(),
		options: make(map[Option]any, len(cfg.Options)),
	}

	for key, value := range cfg.Options {
		if _, isPinned := s.pinned[key]; isPinned {
			continue
		}
		s.options[key] = value
	}

	err := logOperation(logger, "connect", []any{"host", host, "port", port}, func() error {
		handle, err := cfg.Dialer.Open(ctx, host, port)
		if err != nil {
			return err
		}
		s.handle = handle
		return nil
	})
	if err != nil {
		return nil, &DirectoryError{
			Op:      "connect",
			Kind:    KindConnectivity,
			Message: err.Error(),
			Cause:   err,
		}
	}

	// Pin protocol version and referral behaviour on the fresh handle.
	// These two entries always take precedence over user options.
	for key, value := range s.pinned {
		if err := s.handle.SetOption(key, value); err != nil {
			_ = s.handle.Close()
			s.handle = nil
			return nil, classifyError("connect", err)
		}
	}

	return s, nil
}

// ID returns the session's identity, carried in every log line.
func (s *Session) ID() string { return s.id }

// Domain returns the server network name the session is connected to.
func (s *Session) Domain() string { return s.domain }

// Port returns the server port.
func (s *Session) Port() int { return s.port }

// Bound reports whether an authentication call has succeeded since the last
// (re)connect.
func (s *Session) Bound() bool { return s.bound }

// TLSEnabled reports whether TLS negotiation has succeeded on this session.
func (s *Session) TLSEnabled() bool { return s.tlsEnabled }

// Suspended reports whether the session has been exported and its handle
// released.
func (s *Session) Suspended() bool { return s.suspended }

// Options returns a copy of the effective option map: user-supplied entries
// merged with the two pinned entries, pinned values taking precedence.
func (s *Session) Options() map[Option]any {
	merged := make(map[Option]any, len(s.options)+len(s.pinned))
	maps.Copy(merged, s.options)
	maps.Copy(merged, s.pinned)
	return merged
}

// Controls returns the currently registered extended controls in
// registration order.
func (s *Session) Controls() []Control {
	return s.controls.Controls()
}

// requireLive rejects operations on suspended, destroyed, or never-connected
// sessions.
func (s *Session) requireLive(op string) error {
	switch {
	case s.closed:
		return newConfigError(op, "session is destroyed")
	case s.suspended:
		return newConfigError(op, "session is suspended; resume it first")
	case s.handle == nil:
		return newConfigError(op, "session is not connected")
	}
	return nil
}

// applyPendingOptions pushes every stored user option onto the handle. The
// pinned entries were applied at connect time and are skipped here. Safe to
// repeat.
func (s *Session) applyPendingOptions(op string) error {
	for key, value := range s.options {
		if err := s.handle.SetOption(key, value); err != nil {
			return classifyError(op, err)
		}
	}
	return nil
}

// Bind applies all pending options to the handle and then authenticates.
// Empty username and password performs an anonymous bind. A username without
// a password is rejected as a configuration error before any network call,
// to prevent unintended unauthenticated binds.
//
// On success the credentials are retained for Redirect; a successful
// anonymous bind drops any previously retained credentials, so the session
// carries only the identity it currently holds. On failure neither the bound
// state nor previously stored credentials change.
func (s *Session) Bind(ctx context.Context, username, password string) error {
	if err := s.requireLive("bind"); err != nil {
		return err
	}

	if username != "" && password == "" {
		return newConfigError("bind", "username provided without password; refusing unauthenticated bind")
	}

	return logOperation(s.logger, "bind", []any{"username", username, "anonymous", username == ""}, func() error {
		if err := s.applyPendingOptions("bind"); err != nil {
			return err
		}

		if err := s.handle.Bind(username, password); err != nil {
			return classifyError("bind", err)
		}

		if username == "" {
			s.creds = nil
		} else {
			s.creds = &credentials{username: username, password: password}
		}
		s.viaGSSAPI = false
		s.bound = true
		return nil
	})
}

// BindGSSAPI applies all pending options and authenticates via Kerberos.
// The password may be empty when a credential cache or keytab is available.
func (s *Session) BindGSSAPI(ctx context.Context, principal, password string) error {
	if err := s.requireLive("gssapi_bind"); err != nil {
		return err
	}

	return logOperation(s.logger, "gssapi_bind", []any{"principal", principal}, func() error {
		if err := s.applyPendingOptions("gssapi_bind"); err != nil {
			return err
		}

		client, err := newGSSAPIClient(s.cfg, principal, password)
		if err != nil {
			return newConfigError("gssapi_bind", err.Error())
		}
		defer func() {
			_ = client.DeleteSecContext()
		}()

		spn, err := servicePrincipal(s.cfg, s.domain)
		if err != nil {
			return newConfigError("gssapi_bind", err.Error())
		}

		if err := s.handle.GSSAPIBind(client, spn); err != nil {
			return classifyError("gssapi_bind", err)
		}

		s.creds = &credentials{username: principal, password: password}
		s.viaGSSAPI = true
		s.bound = true
		return nil
	})
}

// StartTLS negotiates TLS on the handle. Call it before Bind so credentials
// are protected in transit; the ordering is a caller responsibility and is
// not enforced here. On failure the TLS state is unchanged.
func (s *Session) StartTLS(ctx context.Context) error {
	if err := s.requireLive("start_tls"); err != nil {
		return err
	}

	if s.tlsEnabled {
		return nil
	}

	return logOperation(s.logger, "start_tls", nil, func() error {
		if err := s.handle.StartTLS(s.cfg.TLSConfig); err != nil {
			return classifyError("start_tls", err)
		}
		s.tlsEnabled = true
		return nil
	})
}

// SetOption stores a native connection option and applies it to the live
// handle. The two pinned keys are silently skipped. When the server rejects
// the option the stored map is left unchanged and the classified error is
// returned.
func (s *Session) SetOption(key Option, value any) error {
	if err := s.requireLive("set_option"); err != nil {
		return err
	}

	if _, isPinned := s.pinned[key]; isPinned {
		s.logger.Debug("ignoring attempt to override pinned option", "key", key)
		return nil
	}

	prev, had := s.options[key]
	s.options[key] = value

	if err := s.handle.SetOption(key, value); err != nil {
		if had {
			s.options[key] = prev
		} else {
			delete(s.options, key)
		}
		return classifyError("set_option", err)
	}

	return nil
}

// SetOptions applies a batch of options, stopping at the first failure.
func (s *Session) SetOptions(options map[Option]any) error {
	for key, value := range options {
		if err := s.SetOption(key, value); err != nil {
			return err
		}
	}
	return nil
}

// RootDSE performs a fresh read of the server's RootDSE entry, requesting
// the fixed minimum attribute set plus any extra attributes, and replaces
// the session-scoped cache. Implicit consumers (control registration) use
// the cache when populated instead of re-reading.
func (s *Session) RootDSE(ctx context.Context, extraAttributes ...string) (*RootDSE, error) {
	if err := s.requireLive("root_dse"); err != nil {
		return nil, err
	}

	attributes := make([]string, 0, len(rootDSEAttributes)+len(extraAttributes))
	attributes = append(attributes, rootDSEAttributes...)
	attributes = append(attributes, extraAttributes...)

	var dse *RootDSE
	err := logOperation(s.logger, "root_dse", []any{"extra_attributes", extraAttributes}, func() error {
		entry, err := s.handle.ReadEntry("", attributes)
		if err != nil {
			return classifyError("root_dse", err)
		}
		dse = newRootDSE(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rootDSE = dse
	return dse.clone(), nil
}

// cachedRootDSE returns the cache, loading it on first use.
func (s *Session) cachedRootDSE(ctx context.Context) (*RootDSE, error) {
	if s.rootDSE != nil {
		return s.rootDSE, nil
	}
	if _, err := s.RootDSE(ctx); err != nil {
		return nil, err
	}
	return s.rootDSE, nil
}

// EnableControl requests a server-side extended control on the session.
//
// The control must appear in the RootDSE's advertised supportedControl list;
// when it does not, EnableControl returns (false, nil) without mutating the
// registry, so callers can probe for features without error-driven control
// flow. When the server rejects the re-applied control list (typically a
// critical-but-unsupported extension) the registry entry is rolled back and
// the classified error is returned.
//
// The value payload is retained on the registered tuple but not encoded on
// the wire; see Control.
func (s *Session) EnableControl(ctx context.Context, oid string, critical bool, value string) (bool, error) {
	if err := s.requireLive("enable_control"); err != nil {
		return false, err
	}

	dse, err := s.cachedRootDSE(ctx)
	if err != nil {
		return false, err
	}

	if !dse.SupportsControl(oid) {
		s.logger.Debug("extended control not advertised by server", "oid", oid)
		return false, nil
	}

	s.controls.append(Control{OID: oid, Critical: critical, Value: value})

	if err := s.handle.SetOption(OptionServerControls, s.controls.wire()); err != nil {
		s.controls.pop()
		return false, classifyError("enable_control", err)
	}

	s.logger.Debug("extended control enabled",
		"oid", oid, "critical", critical, "active_controls", s.controls.Len())
	return true, nil
}

// Redirect constructs a new session pointed at newDomain, reusing this
// session's port, options, and TLS setting, and re-binds it with the same
// credentials. Used for manual referral chasing; the transport never follows
// referrals on its own.
func (s *Session) Redirect(ctx context.Context, newDomain string) (*Session, error) {
	if err := s.requireLive("redirect"); err != nil {
		return nil, err
	}

	cfg := s.cfg.clone()
	cfg.Domain = newDomain
	cfg.Port = s.port
	cfg.DiscoverSRV = false
	cfg.Options = maps.Clone(s.options)

	next, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if s.tlsEnabled {
		if err := next.StartTLS(ctx); err != nil {
			next.Close()
			return nil, err
		}
	}

	if s.bound {
		var bindErr error
		switch {
		case s.viaGSSAPI && s.creds != nil:
			bindErr = next.BindGSSAPI(ctx, s.creds.username, s.creds.password)
		case s.creds != nil:
			bindErr = next.Bind(ctx, s.creds.username, s.creds.password)
		default:
			bindErr = next.Bind(ctx, "", "")
		}
		if bindErr != nil {
			next.Close()
			return nil, bindErr
		}
	}

	s.logger.Debug("redirected session", "new_domain", newDomain, "new_session_id", next.ID())
	return next, nil
}

// Export suspends the session into a transportable, handle-free snapshot.
// The native handle is released and the credentials are cleared
// unconditionally; the originating session is unusable afterwards except for
// Close. The caller must retain credentials itself if it intends to bind the
// resumed session.
func (s *Session) Export() (*Snapshot, error) {
	if s.closed {
		return nil, newConfigError("export", "session is destroyed")
	}
	if s.suspended {
		return nil, newConfigError("export", "session is already suspended")
	}

	snap := &Snapshot{
		Domain:     s.domain,
		Port:       s.port,
		Options:    s.Options(),
		TLSEnabled: s.tlsEnabled,
	}

	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.logger.Warn("failed to release handle on export", "error", err)
		}
		s.handle = nil
	}

	s.creds = nil
	s.bound = false
	s.rootDSE = nil
	s.suspended = true

	s.logger.Debug("session suspended", "domain", snap.Domain, "port", snap.Port)
	return snap, nil
}

// Resume reconstructs a live session from a snapshot: it reconnects to the
// snapshot's endpoint, stores the snapshot's options for application at
// bind time, and re-negotiates TLS when the snapshot indicates it was
// enabled. The resulting session is unbound; the caller must Bind again.
//
// cfg supplies runtime collaborators (dialer, logger, TLS and Kerberos
// settings) and may be nil; its Domain, Port, and Options are overridden by
// the snapshot.
func Resume(ctx context.Context, snap *Snapshot, cfg *Config) (*Session, error) {
	if snap == nil {
		return nil, newConfigError("resume", "snapshot cannot be nil")
	}

	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.clone()
	}
	cfg.Domain = snap.Domain
	cfg.Port = snap.Port
	cfg.DiscoverSRV = false
	cfg.Options = snap.userOptions()

	s, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if snap.TLSEnabled {
		if err := s.StartTLS(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close releases the native handle if still valid and marks the session
// destroyed. Idempotent.
func (s *Session) Close() {
	if s.closed {
		return
	}

	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.logger.Warn("failed to release handle on close", "error", err)
		}
		s.handle = nil
	}

	s.creds = nil
	s.bound = false
	s.closed = true
}
