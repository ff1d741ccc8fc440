// Package backend contains interfaces and implementations to retrieve
// data from the object database
package backend

import (
	"errors"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/ginternals/object"
	"github.com/solstice-oss/gitodb/ginternals/packfile"
)

// Backend represents an object that can retrieve data from the odb.
// Implementations are read-only: this package never writes objects,
// packs, or references back to the store.
type Backend interface {
	// Close frees the resources
	Close() error

	// Reference returns a stored reference from its name
	Reference(name string) (*ginternals.Reference, error)
	// WalkReferences runs the provided method on all the references
	WalkReferences(f RefWalkFunc) error

	// Object returns the object that has the given oid
	Object(ginternals.Oid) (*object.Object, error)
	// HasObject returns whether an object exists in the odb
	HasObject(ginternals.Oid) (bool, error)
	// WalkPackedObjectIDs runs the provided method on all the object ids
	// found across every packfile
	WalkPackedObjectIDs(f packfile.OidWalkFunc) error
	// WalkLooseObjectIDs runs the provided method on all the loose
	// object ids
	WalkLooseObjectIDs(f packfile.OidWalkFunc) error
}

// RefWalkFunc represents a function that will be applied on all references
// found by WalkReferences()
type RefWalkFunc = func(ref *ginternals.Reference) error

// WalkStop is a fake error used to tell a Walk method to stop
var WalkStop = errors.New("stop walking") //nolint // the linter expects all errors to start with Err, but since here we're faking an error we don't want that
