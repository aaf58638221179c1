// Package apperr defines the error kinds shared by the catalog, cache,
// collection and price layers. Callers inspect kinds with Is or KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the caller should react to it.
type Kind int

const (
	KindUnknown Kind = iota
	// NotFound: card or set id unresolvable. Non-fatal, shown as empty state.
	NotFound
	// UpstreamUnavailable: catalog or price source unreachable with no usable cache.
	UpstreamUnavailable
	// Timeout: the remote call hit its deadline. Retryable.
	Timeout
	// QuotaExceeded: the price API budget for the current window is spent.
	QuotaExceeded
	// DataIntegrity: duplicate collection rows or similar stored-data problems.
	DataIntegrity
	// Invalid: malformed caller input.
	Invalid
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case UpstreamUnavailable:
		return "UpstreamUnavailable"
	case Timeout:
		return "Timeout"
	case QuotaExceeded:
		return "QuotaExceeded"
	case DataIntegrity:
		return "DataIntegrity"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. err may be nil.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether the operation may succeed if attempted again.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case Timeout, UpstreamUnavailable:
		return true
	default:
		return false
	}
}
