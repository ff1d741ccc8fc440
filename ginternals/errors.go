package ginternals

import "errors"

// Sentinel errors returned by the object database reader. Every error
// surfaced by this module wraps one of these with xerrors.Errorf so
// callers can keep using errors.Is regardless of how deep the wrapping
// chain is.
var (
	// ErrObjectNotFound is returned when a fingerprint doesn't match
	// any loose or packed object
	ErrObjectNotFound = errors.New("object not found")

	// ErrCorruptObject is returned when a loose object's declared
	// content length doesn't match the amount of data actually stored
	ErrCorruptObject = errors.New("corrupt object")
)
