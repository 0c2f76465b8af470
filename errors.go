package adsession

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorKind classifies directory failures into a small taxonomy.
type ErrorKind string

const (
	KindNone               ErrorKind = "none"
	KindConfiguration      ErrorKind = "configuration"
	KindConnectivity       ErrorKind = "connectivity"
	KindAuthentication     ErrorKind = "authentication"
	KindUnsupportedFeature ErrorKind = "unsupported_feature"
	KindNative             ErrorKind = "native"
)

// DirectoryError provides structured error information for session operations.
type DirectoryError struct {
	Op      string    // The operation that failed
	Kind    ErrorKind // Failure classification
	Code    uint16    // Native LDAP result code, if any
	Message string    // Human-readable message
	Reason  string    // Bind failure reason extracted from AD diagnostics, if any
	Cause   error     // Underlying error
}

func (e *DirectoryError) Error() string {
	var parts []string

	if e.Code > 0 {
		parts = append(parts, fmt.Sprintf("directory %s failed (code %d)", e.Op, e.Code))
	} else {
		parts = append(parts, fmt.Sprintf("directory %s failed", e.Op))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Reason != "" {
		parts = append(parts, fmt.Sprintf("reason: %s", e.Reason))
	}

	return strings.Join(parts, " - ")
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// Classify maps a native LDAP result code to an ErrorKind. The mapping is
// total: codes outside the table fall through to KindNative. It has no side
// effects.
func Classify(code uint16) ErrorKind {
	switch code {
	case ldap.LDAPResultSuccess:
		return KindNone

	// Authentication failures: bad or expired credentials, restricted or
	// disabled accounts, and callers lacking rights to bind.
	case ldap.LDAPResultStrongAuthRequired,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInsufficientAccessRights:
		return KindAuthentication

	// Server unreachable.
	case ldap.LDAPResultServerDown,
		ldap.LDAPResultConnectError,
		ldap.ErrorNetwork:
		return KindConnectivity

	// Critical extension unavailable.
	case ldap.LDAPResultUnavailableCriticalExtension,
		ldap.LDAPResultNotSupported:
		return KindUnsupportedFeature

	default:
		return KindNative
	}
}

// adDataCode matches the "data NNN" hex sub-code Active Directory appends to
// bind diagnostics (e.g. "80090308: LdapErr: DSID-0C090447, comment:
// AcceptSecurityContext error, data 533, v4563").
var adDataCode = regexp.MustCompile(`data ([0-9a-fA-F]+)`)

// adBindReasons maps AD AcceptSecurityContext sub-codes to bind failure
// reasons. All of them classify as authentication failures.
var adBindReasons = map[string]string{
	"525": "user not found",
	"52e": "invalid credentials",
	"530": "not permitted to logon at this time",
	"531": "not permitted to logon at this workstation",
	"532": "password expired",
	"533": "account disabled",
	"701": "account expired",
	"773": "password must be reset",
	"775": "account locked out",
}

// bindFailureReason extracts a human-readable reason from an AD bind
// diagnostic message. Returns "" when no known sub-code is present.
func bindFailureReason(msg string) string {
	m := adDataCode.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	return adBindReasons[strings.ToLower(m[1])]
}

// classifyError wraps err into a *DirectoryError for the given operation,
// consulting Classify for LDAP result errors. Nil in, nil out.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var dirErr *DirectoryError
	if errors.As(err, &dirErr) {
		return err
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		serverMsg := ""
		if ldapErr.Err != nil {
			serverMsg = ldapErr.Err.Error()
		}
		return &DirectoryError{
			Op:      op,
			Kind:    Classify(ldapErr.ResultCode),
			Code:    ldapErr.ResultCode,
			Message: serverMsg,
			Reason:  bindFailureReason(serverMsg),
			Cause:   err,
		}
	}

	return &DirectoryError{
		Op:      op,
		Kind:    KindNative,
		Message: err.Error(),
		Cause:   err,
	}
}

// newConfigError reports a malformed call rejected before reaching the
// directory server.
func newConfigError(op, message string) error {
	return &DirectoryError{
		Op:      op,
		Kind:    KindConfiguration,
		Message: message,
	}
}

// KindOf returns the classification of an error, KindNative for errors this
// package did not produce, and KindNone for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var dirErr *DirectoryError
	if errors.As(err, &dirErr) {
		return dirErr.Kind
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return Classify(ldapErr.ResultCode)
	}

	return KindNative
}

// IsConfigurationError checks if an error reports a malformed call.
func IsConfigurationError(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsConnectivityError checks if an error reports an unreachable server.
func IsConnectivityError(err error) bool {
	return KindOf(err) == KindConnectivity
}

// IsAuthenticationError checks if an error reports an authentication problem.
func IsAuthenticationError(err error) bool {
	return KindOf(err) == KindAuthentication
}

// IsUnsupportedFeatureError checks if an error reports a rejected critical
// extension.
func IsUnsupportedFeatureError(err error) bool {
	return KindOf(err) == KindUnsupportedFeature
}
