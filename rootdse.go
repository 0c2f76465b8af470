package adsession

import (
	"slices"

	"github.com/go-ldap/ldap/v3"
)

// rootDSEAttributes is the minimum attribute set read from the server's
// RootDSE entry on every load.
var rootDSEAttributes = []string{
	"dnsHostName",
	"defaultNamingContext",
	"rootDomainNamingContext",
	"configurationNamingContext",
	"schemaNamingContext",
	"highestCommittedUSN",
	"supportedControl",
	"supportedLDAPVersion",
	"supportedSASLMechanisms",
	"currentTime",
}

// RootDSE is a snapshot of the directory server's capability and topology
// metadata. It is session-scoped: loaded lazily on first implicit use,
// reloaded on every explicit Session.RootDSE call, and never invalidated
// implicitly.
type RootDSE struct {
	DNSHostName                string
	DefaultNamingContext       string
	RootDomainNamingContext    string
	ConfigurationNamingContext string
	SchemaNamingContext        string
	HighestCommittedUSN        string
	SupportedControls          []string
	SupportedLDAPVersions      []string
	SupportedSASLMechanisms    []string
	CurrentTime                string

	// Attributes holds every attribute returned by the load, including any
	// caller-requested extras beyond the fixed set.
	Attributes map[string][]string
}

// newRootDSE builds a RootDSE from the raw root entry.
func newRootDSE(entry *ldap.Entry) *RootDSE {
	dse := &RootDSE{
		DNSHostName:                entry.GetAttributeValue("dnsHostName"),
		DefaultNamingContext:       entry.GetAttributeValue("defaultNamingContext"),
		RootDomainNamingContext:    entry.GetAttributeValue("rootDomainNamingContext"),
		ConfigurationNamingContext: entry.GetAttributeValue("configurationNamingContext"),
		SchemaNamingContext:        entry.GetAttributeValue("schemaNamingContext"),
		HighestCommittedUSN:        entry.GetAttributeValue("highestCommittedUSN"),
		SupportedControls:          entry.GetAttributeValues("supportedControl"),
		SupportedLDAPVersions:      entry.GetAttributeValues("supportedLDAPVersion"),
		SupportedSASLMechanisms:    entry.GetAttributeValues("supportedSASLMechanisms"),
		CurrentTime:                entry.GetAttributeValue("currentTime"),
		Attributes:                 make(map[string][]string, len(entry.Attributes)),
	}

	for _, attr := range entry.Attributes {
		dse.Attributes[attr.Name] = slices.Clone(attr.Values)
	}

	return dse
}

// SupportsControl reports whether the server advertises the extended control
// identified by oid.
func (r *RootDSE) SupportsControl(oid string) bool {
	return slices.Contains(r.SupportedControls, oid)
}

// GetAttributeValue returns the first value of the named attribute, or ""
// when absent.
func (r *RootDSE) GetAttributeValue(name string) string {
	values := r.Attributes[name]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// clone returns an independent copy, so cached metadata handed to callers
// cannot be mutated under the session.
func (r *RootDSE) clone() *RootDSE {
	dup := *r
	dup.SupportedControls = slices.Clone(r.SupportedControls)
	dup.SupportedLDAPVersions = slices.Clone(r.SupportedLDAPVersions)
	dup.SupportedSASLMechanisms = slices.Clone(r.SupportedSASLMechanisms)
	dup.Attributes = make(map[string][]string, len(r.Attributes))
	for name, values := range r.Attributes {
		dup.Attributes[name] = slices.Clone(values)
	}
	return &dup
}
