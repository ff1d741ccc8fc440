package ginternals

import (
	"bytes"
	"errors"

	"golang.org/x/xerrors"
)

// Common ref names
const (
	// Head is a reference to the current branch, or to a commit if
	// we're detached
	Head = "HEAD"
	// OrigHead is a backup reference of HEAD set during destructive commands
	// such as rebase, merge, etc. and can be used to revert an operation
	OrigHead = "ORIG_HEAD"
	// MergeHead is a reference to the commit that is being merged
	// into the current branch
	MergeHead = "MERGE_HEAD"
	// CherryPickHead is a reference to the commit that is being
	// cherry-picked
	CherryPickHead = "CHERRY_PICK_HEAD"
	// Master correspond to the default branch name if none was
	// specified
	Master = "master"

	// FetchHead is a reference to the most recently fetched branch
	// Removed because the format is not currently supported. It's a
	// list of commit IDs with the branch name, the origin, and other
	// extra information. Example:
	//     bbb720a96e4c29b9950a4c577c98470a4d5dd089		branch 'master' of example.com:org/repo
	//     5f35f2dc6cec7356da02ca26192ce2bc3f271e79	not-for-merge	branch 'feat/clone' of example.com:org/repo
	// FetchHead = "FETCH_HEAD"
)

var (
	// ErrRefNotFound is an error thrown when trying to act on a
	// reference that doesn't exists
	ErrRefNotFound = errors.New("reference not found")

	// ErrRefExists is an error thrown when trying to act on a
	// reference that should not exist, but does
	ErrRefExists = errors.New("reference already exists")

	// ErrRefNameInvalid is an error thrown when the name of a reference
	// is not valid
	ErrRefNameInvalid = errors.New("reference name is not valid")

	// ErrRefInvalid is an error thrown when a reference is not valid
	ErrRefInvalid = errors.New("reference is not valid")

	// ErrPackedRefInvalid is an error thrown when the packed-refs
	// file cannot be parsed properly
	ErrPackedRefInvalid = errors.New("packed-refs file is invalid")

	// ErrUnknownRefType is an error thrown when the type of a reference
	// is unknown
	ErrUnknownRefType = errors.New("unknown reference type")
)

// ReferenceType represents the type of a reference
type ReferenceType int8

const (
	// OidReference represents a reference that targets an Oid
	OidReference ReferenceType = 1
	// SymbolicReference represents a reference that targets another
	// reference
	SymbolicReference ReferenceType = 2
)

// Reference represents a git reference
// https://git-scm.com/book/en/v2/Git-Internals-Git-References
type Reference struct {
	name   string
	target string
	id     Oid
	typ    ReferenceType
}

// RefContent represents a method that returns the content of reference
// This is used so we can do the process here, without depending
// on a specific backend or having circular dependencies
type RefContent func(name string) ([]byte, error)

// ResolveReference resolves name to a Reference.
//
// name is read through finder. If its content starts with "ref: ", the
// reference is symbolic: the target name is extracted and looked up
// once more through finder, and that second read is expected to be a
// bare hex fingerprint (symbolic references only chain one level deep;
// HEAD is the only reference this repository ever stores symbolically).
// Otherwise the content is parsed directly as a bare hex fingerprint.
func ResolveReference(name string, finder RefContent) (*Reference, error) {
	if name == "" {
		return nil, xerrors.Errorf("ref name is empty: %w", ErrRefNameInvalid)
	}

	data, err := finder(name)
	if err != nil {
		return nil, err
	}
	data = bytes.Trim(data, " \n")

	// we're expecting at the very least 6 char:
	// "ref: " followed by a ref
	if len(data) < 6 {
		return nil, ErrRefInvalid
	}

	// if the reference is symbolic, we follow it a single level to get
	// its target's fingerprint
	if string(data[0:5]) == "ref: " {
		symbolicTarget := string(data[5:])
		if symbolicTarget == "" {
			return nil, xerrors.Errorf("ref name is empty: %w", ErrRefNameInvalid)
		}

		targetData, err := finder(symbolicTarget)
		if err != nil {
			return nil, err
		}
		targetData = bytes.Trim(targetData, " \n")

		oid, err := NewOidFromChars(targetData)
		if err != nil {
			return nil, ErrRefInvalid
		}
		return &Reference{
			typ:    SymbolicReference,
			name:   name,
			id:     oid,
			target: symbolicTarget,
		}, nil
	}

	oid, err := NewOidFromChars(data)
	if err != nil {
		return nil, ErrRefInvalid
	}
	return &Reference{
		typ:  OidReference,
		name: name,
		id:   oid,
	}, nil
}

// NewReference return a new Reference object that targets
// an object
func NewReference(name string, target Oid) *Reference {
	return &Reference{
		typ:  OidReference,
		name: name,
		id:   target,
	}
}

// NewSymbolicReference return a new Reference object that targets
// another reference.
// Example HEAD targeting heads/master
func NewSymbolicReference(name, target string) *Reference {
	return &Reference{
		typ:    SymbolicReference,
		name:   name,
		target: target,
	}
}

// Name returns the full name fo the reference:
// example: refs/heads/master
func (ref *Reference) Name() string {
	return ref.name
}

// Target returns the ID targeted by a reference
func (ref *Reference) Target() Oid {
	return ref.id
}

// Type returns the type of a reference
func (ref *Reference) Type() ReferenceType {
	return ref.typ
}

// SymbolicTarget returns the symbolic target of a reference
func (ref *Reference) SymbolicTarget() string {
	return ref.target
}
