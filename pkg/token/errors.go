//
// # Licensing
//
// This file is part of the consent-core project and is licensed under the Apache License 2.0.
// It incorporates code and concepts from:
//   - OAuth 2.0 and OpenID Connect (Apache 2.0 License)
//   - Model Context Protocol (MIT License)
// See the LICENSE file in the project root for details.

package token

import "errors"

// Sentinel errors for conditions that do not carry a reason string of
// their own.
var (
	ErrSecretNotConfigured = errors.New("token: secret key not configured")
)

// ValidationErrorCode identifies the class of a consent token validation
// failure.
type ValidationErrorCode string

const (
	// ValidationCodeRevoked indicates the revocation checker reports the
	// raw token string as revoked.
	ValidationCodeRevoked ValidationErrorCode = "revoked"

	// ValidationCodeInvalidPrefix indicates the wire string does not begin
	// with "HCT:".
	ValidationCodeInvalidPrefix ValidationErrorCode = "invalid_prefix"

	// ValidationCodeMalformed indicates the wire string lacks the '.'
	// signature separator or has a '.' inside the payload, the payload
	// failed to base64url decode, did not split into exactly 5
	// pipe-delimited fields, or carried non-numeric timestamps.
	ValidationCodeMalformed ValidationErrorCode = "malformed"

	// ValidationCodeInvalidSignature indicates the recomputed HMAC did not
	// match the wire signature.
	ValidationCodeInvalidSignature ValidationErrorCode = "invalid_signature"

	// ValidationCodeExpired indicates now_ms > expires_at.
	ValidationCodeExpired ValidationErrorCode = "expired"

	// ValidationCodeScopeMismatch indicates the token's granted scope does
	// not satisfy the expected scope.
	ValidationCodeScopeMismatch ValidationErrorCode = "scope_mismatch"

	// ValidationCodeLedgerConflict indicates validate_with_ledger found no
	// matching active-projection grant for the token's (user_id, scope_str).
	ValidationCodeLedgerConflict ValidationErrorCode = "ledger_conflict"
)

// ValidationError represents a consent token validation failure. Reason is
// surfaced verbatim to callers per spec §4.2; it is never reworded upstream.
type ValidationError struct {
	// Code identifies the type of validation failure.
	Code ValidationErrorCode

	// Reason is the exact, verbatim-surfaced failure message.
	Reason string

	// Err is the underlying error, if any (e.g. a base64 decode error).
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error with the given code and reason.
func NewValidationError(code ValidationErrorCode, reason string) *ValidationError {
	return &ValidationError{
		Code:   code,
		Reason: reason,
	}
}

// NewValidationErrorWithCause creates a validation error with an underlying cause.
func NewValidationErrorWithCause(code ValidationErrorCode, reason string, err error) *ValidationError {
	return &ValidationError{
		Code:   code,
		Reason: reason,
		Err:    err,
	}
}

// Is implements error interface for error wrapping, comparing by Code only
// (so callers can do errors.Is(err, &ValidationError{Code: ...})).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
