package official

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engine. The kind string is part of the wire
// contract: the HTTP layer returns it verbatim in the error field.
const (
	KindWAFBlocked         = "WAF_BLOCKED"
	KindRateSelectNotFound = "RATE_SELECT_NOT_FOUND"
	KindEmptyParse         = "EMPTY_PARSE"
	KindSessionInvalid     = "OFFICIAL_SESSION_INVALID"
	KindResultEmpty        = "OFFICIAL_RESULT_EMPTY"
	KindTimeout            = "TIMEOUT"

	KindInvalidAmount     = "MONTO_INVALIDO"
	KindInvalidRateType   = "TIPO_TASA_INVALIDO"
	KindInvalidDate       = "FECHA_INVALIDA"
	KindInvalidAgreedRate = "TASA_PACTADA_INVALIDA"
)

// Error is a typed engine failure. Kind carries the wire-visible error
// code; Err optionally wraps the underlying cause.
type Error struct {
	Kind string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates an engine error with the given kind.
func NewError(kind string) *Error { return &Error{Kind: kind} }

// WrapError creates an engine error with the given kind and cause.
func WrapError(kind string, err error) *Error { return &Error{Kind: kind, Err: err} }

// HTTPStatusKind builds the kind for a non-2xx upstream response,
// e.g. HTTP_503.
func HTTPStatusKind(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// ErrorKind extracts the wire error kind from any error. Unknown errors
// map to the generic upstream failure code.
func ErrorKind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return "OFFICIAL_CALC_FAILED"
}

// IsValidationError reports whether the error is a caller-input problem
// (4xx-equivalent) as opposed to an upstream failure (5xx-equivalent).
func IsValidationError(err error) bool {
	switch ErrorKind(err) {
	case KindInvalidAmount, KindInvalidRateType, KindInvalidDate, KindInvalidAgreedRate:
		return true
	}
	return false
}
