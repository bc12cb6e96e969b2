package http

import (
	"errors"
	"net/http"

	"github.com/garyjia/caseflow/internal/application/service"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

// Machine-readable error codes returned in Response.Code
const (
	CodeInvalidInput           = "INVALID_INPUT"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeInvalidTransition      = "INVALID_STATE_TRANSITION"
	CodeGuardViolation         = "GUARD_VIOLATION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeLegacyState            = "LEGACY_STATE"
	CodeStoreUnavailable       = "STORE_UNAVAILABLE"
	CodeInternal               = "INTERNAL"
)

// errorStatus maps the workflow error taxonomy to an HTTP status and code.
// Order matters: store failures can wrap a not-found from a lookup.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domainwf.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domainwf.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, domainwf.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, domainwf.ErrLegacyState):
		return http.StatusConflict, CodeLegacyState
	case errors.Is(err, domainwf.ErrInvalidStateTransition):
		return http.StatusConflict, CodeInvalidTransition
	case errors.Is(err, domainwf.ErrGuardViolation):
		return http.StatusUnprocessableEntity, CodeGuardViolation
	case errors.Is(err, domainwf.ErrConcurrentModification):
		return http.StatusConflict, CodeConcurrentModification
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// guardReason extracts the sub-reason of a guard violation, if any
func guardReason(err error) string {
	var gv *domainwf.GuardViolation
	if errors.As(err, &gv) {
		return string(gv.Reason)
	}
	return ""
}
