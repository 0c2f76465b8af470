package adsession

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// newGSSAPIClient creates a Kerberos GSSAPI client for the given principal.
// Credential priority: explicit ccache, default ccache, explicit keytab,
// default keytab, password.
func newGSSAPIClient(cfg *Config, principal, password string) (ldap.GSSAPIClient, error) {
	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = "/etc/krb5.conf"
	}

	if !fileExists(krb5conf) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s", krb5conf)
	}

	realm := cfg.KerberosRealm
	if realm == "" && strings.Contains(principal, "@") {
		parts := strings.SplitN(principal, "@", 2)
		principal, realm = parts[0], parts[1]
	}
	if realm == "" {
		return nil, fmt.Errorf("kerberos realm is required (set KerberosRealm or include the realm in the principal)")
	}
	if principal == "" {
		return nil, fmt.Errorf("principal is required for Kerberos authentication")
	}

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if ccache := defaultCCachePath(); fileExists(ccache) {
		return gssapi.NewClientFromCCache(ccache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(principal, realm, cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if keytab := defaultKeytabPath(); fileExists(keytab) {
		return gssapi.NewClientWithKeytab(principal, realm, keytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if password != "" {
		return gssapi.NewClientWithPassword(principal, realm, password, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// servicePrincipal builds the LDAP SPN for the target host, honouring an
// explicit override from the configuration.
func servicePrincipal(cfg *Config, host string) (string, error) {
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	if host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}

	// SPNs never include a port.
	if colon := strings.Index(host, ":"); colon != -1 {
		host = host[:colon]
	}

	return fmt.Sprintf("ldap/%s", host), nil
}

// defaultCCachePath returns the default credential cache location.
func defaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// defaultKeytabPath returns the default keytab location.
func defaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
