// Package diag defines the error taxonomy and the diagnostics report produced by a
// generation pass.
package diag

import (
	"errors"
	"fmt"
)

// Kind classifies a failure raised anywhere in the inference pipeline.
type Kind int

const (
	// UnparsableSyntax is fatal for one file; routes depending on it stay unresolved.
	UnparsableSyntax Kind = iota + 1
	// UnsupportedConstruct degrades the affected field to an opaque schema.
	UnsupportedConstruct
	// AmbiguousType marks a low-confidence constraint record; example synthesis is skipped.
	AmbiguousType
	// DuplicateRoute aborts the whole pass.
	DuplicateRoute
	// InvalidDocumentShape aborts the whole pass.
	InvalidDocumentShape
	// SourceNotFound is reported when the source reader cannot locate a path.
	SourceNotFound
	// UnresolvedHandler is reported when a route handler cannot be mapped to source.
	UnresolvedHandler
)

var kindNames = map[Kind]string{
	UnparsableSyntax:     "UnparsableSyntax",
	UnsupportedConstruct: "UnsupportedConstruct",
	AmbiguousType:        "AmbiguousType",
	DuplicateRoute:       "DuplicateRoute",
	InvalidDocumentShape: "InvalidDocumentShape",
	SourceNotFound:       "SourceNotFound",
	UnresolvedHandler:    "UnresolvedHandler",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// PassLevel reports whether the kind aborts a whole generation pass.
func (k Kind) PassLevel() bool {
	return k == DuplicateRoute || k == InvalidDocumentShape
}

// Sentinel errors, one per kind. Use errors.Is to test a returned error against them.
var (
	ErrUnparsableSyntax     = &Error{Kind: UnparsableSyntax}
	ErrUnsupportedConstruct = &Error{Kind: UnsupportedConstruct}
	ErrAmbiguousType        = &Error{Kind: AmbiguousType}
	ErrDuplicateRoute       = &Error{Kind: DuplicateRoute}
	ErrInvalidDocumentShape = &Error{Kind: InvalidDocumentShape}
	ErrSourceNotFound       = &Error{Kind: SourceNotFound}
	ErrUnresolvedHandler    = &Error{Kind: UnresolvedHandler}
)

// Error is the typed failure carried through the pipeline.
type Error struct {
	Kind     Kind
	Path     string // source path, if any
	RouteKey string // route key, if any
	Message  string
	Err      error // underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.RouteKey != "" {
		msg += " [" + e.RouteKey + "]"
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a new typed error.
func New(kind Kind, path, message string) *Error {
	return &Error{Kind: kind, Path: path, Message: message}
}

// Wrap creates a typed error around an underlying cause.
func Wrap(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// MarshalText renders the kind name in reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
