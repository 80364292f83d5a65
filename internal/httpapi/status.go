package httpapi

import (
	"net/http"

	"github.com/hushh-labs/consent-core/pkg/token"
)

// validationHTTPStatus maps a ValidationError to the status table in spec
// §7: scope mismatch is 403 (the token is otherwise sound, the caller is
// simply unauthorized for that scope); every other class is 401.
func validationHTTPStatus(verr *token.ValidationError) int {
	switch verr.Code {
	case token.ValidationCodeScopeMismatch:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}
