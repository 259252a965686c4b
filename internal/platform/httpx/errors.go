package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared across the HTTP boundary.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps shared sentinel errors to HTTP responses. Module
// handlers map their own business taxonomy before falling back here.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		ProblemCode(w, http.StatusNotFound, "NotFound", "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		ProblemCode(w, http.StatusConflict, "Duplicate", "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		ProblemCode(w, http.StatusForbidden, "Forbidden", "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		ProblemCode(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
