package reference

import (
	"errors"
	"strings"
)

var (
	// ErrReferenceNotFound indicates a reference name is in neither namespace.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrAttributeNotFound indicates the reference exists but no namespace
	// could provide the requested attribute.
	ErrAttributeNotFound = errors.New("attribute not found")

	// ErrCyclicReference indicates a reference graph that loops back on itself.
	ErrCyclicReference = errors.New("cyclic reference")
)

// LookupError describes a failed resolution.
type LookupError struct {
	Reference string
	Attribute string // empty when the whole object was requested
	Err       error
}

func (e *LookupError) Error() string {
	if e.Attribute == "" {
		return e.Err.Error() + ": " + quote(e.Reference)
	}
	return e.Err.Error() + ": " + quote(e.Reference) + " has no attribute " + quote(e.Attribute)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// CycleError reports the chain of reference names that closed a loop.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return ErrCyclicReference.Error() + ": " + strings.Join(e.Chain, " -> ")
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicReference
}

func quote(s string) string {
	return "'" + s + "'"
}
