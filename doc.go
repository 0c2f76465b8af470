// Package adsession manages the lifecycle of LDAP and Active Directory
// connections: establishing a link to a directory server, negotiating
// transport security, authenticating, registering server-side extended
// controls, caching RootDSE metadata, and suspending a live session into a
// transportable snapshot that can be resumed in a different process.
//
// The package orchestrates an underlying directory client (go-ldap) through
// the Dialer and Conn boundary interfaces; it never implements protocol
// framing itself.
//
// # Basic Usage
//
//	sess, err := adsession.Connect(ctx, &adsession.Config{
//		Domain: "dc1.example.com",
//		Port:   389,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Close()
//
//	if err := sess.StartTLS(ctx); err != nil {
//		log.Fatal(err)
//	}
//	if err := sess.Bind(ctx, "alice@example.com", "secret"); err != nil {
//		if adsession.IsAuthenticationError(err) {
//			log.Printf("authentication failed: %v", err)
//		}
//		return
//	}
//
// # Suspend and Resume
//
// A bound session can be exported to a handle-free snapshot and later
// resumed elsewhere. The snapshot carries configuration only, never the
// native connection or credentials; the caller must bind again after
// resuming:
//
//	snap, err := sess.Export()
//	// ... transport snap.Bytes() to another process ...
//	sess2, err := adsession.Resume(ctx, snap, nil)
//	err = sess2.Bind(ctx, username, password)
//
// # Error Handling
//
// All failures surface synchronously as *DirectoryError values carrying a
// structured kind. Use the predicate helpers (IsAuthenticationError,
// IsConnectivityError, IsUnsupportedFeatureError, IsConfigurationError) or
// KindOf to branch on the failure class. The package performs no retries
// and no silent recovery.
package adsession
