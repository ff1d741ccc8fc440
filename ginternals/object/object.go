// Package object contains the typed decoders for the four kinds of git
// objects (commit, tree, blob, tag), built on top of the canonical
// "<type> <size>\0<content>" framing every object shares on disk.
package object

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/xerrors"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/internal/errutil"
)

var (
	// ErrObjectUnknown represents an error thrown when encountering an
	// unknown object type
	ErrObjectUnknown = errors.New("invalid object type")

	// ErrObjectInvalid represents an error thrown when an object contains
	// unexpected data or when the wrong object is provided to a method
	ErrObjectInvalid = errors.New("invalid object")

	// ErrTreeInvalid represents an error thrown when parsing an invalid
	// tree object
	ErrTreeInvalid = errors.New("invalid tree")

	// ErrCommitInvalid represents an error thrown when parsing an invalid
	// commit object
	ErrCommitInvalid = errors.New("invalid commit")

	// ErrTagInvalid represents an error thrown when parsing an invalid
	// tag object
	ErrTagInvalid = errors.New("invalid tag")
)

// splitMessage splits a commit/tag message into its summary (the first
// line) and detail (everything after the first line, with the
// separating blank line stripped).
func splitMessage(msg string) (summary, detail string) {
	i := strings.IndexByte(msg, '\n')
	if i < 0 {
		return msg, ""
	}
	return msg[:i], strings.TrimPrefix(msg[i+1:], "\n")
}

// Type represents the type of an object as stored in a packfile
type Type int8

// List of all the possible object types
const (
	TypeCommit Type = 1
	TypeTree   Type = 2
	TypeBlob   Type = 3
	TypeTag    Type = 4
	// 5 is reserved for future use
	ObjectDeltaOFS Type = 6
	ObjectDeltaRef Type = 7
)

func (t Type) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeTag:
		return "tag"
	case ObjectDeltaOFS:
		return "ofs-delta"
	case ObjectDeltaRef:
		return "ref-delta"
	default:
		panic(fmt.Sprintf("unknown object type %d", t))
	}
}

// IsValid checks if the object type is a known, persistable type
func (t Type) IsValid() bool {
	switch t {
	case TypeCommit, TypeTree, TypeBlob, TypeTag, ObjectDeltaOFS, ObjectDeltaRef:
		return true
	default:
		return false
	}
}

// NewTypeFromString returns a Type from its string representation
func NewTypeFromString(t string) (Type, error) {
	switch t {
	case "commit":
		return TypeCommit, nil
	case "tree":
		return TypeTree, nil
	case "blob":
		return TypeBlob, nil
	case "tag":
		return TypeTag, nil
	default:
		return 0, ErrObjectUnknown
	}
}

// Object represents a raw git object. An object can be of multiple types
// but they all share the same framing: type, size, a NUL byte, then the
// type-specific content.
// https://git-scm.com/book/en/v2/Git-Internals-Git-Objects
type Object struct {
	id      ginternals.Oid
	typ     Type
	content []byte

	idProcessing sync.Once
}

// New creates a new git object of the given type around already-decoded
// content (the content does not include the "<type> <size>\0" header)
func New(typ Type, content []byte) *Object {
	o := &Object{
		typ:     typ,
		content: content,
	}
	o.id, _ = o.build()
	return o
}

// NewWithID creates a new git object from already-decoded content, using
// a fingerprint supplied by the caller instead of recomputing it.
// This is used when the fingerprint is already known (from a pack's
// index for content extracted from a pack, possibly after resolving a
// delta chain, or from the path of a loose object), so re-hashing the
// content would be wasted work.
func NewWithID(id ginternals.Oid, typ Type, content []byte) *Object {
	o := &Object{
		id:      id,
		typ:     typ,
		content: content,
	}
	o.idProcessing.Do(func() {})
	return o
}

// ID returns the fingerprint of the object
func (o *Object) ID() ginternals.Oid {
	o.idProcessing.Do(func() {
		o.id, _ = o.build()
	})
	return o.id
}

// Size returns the size of the object's content, excluding the header
func (o *Object) Size() int {
	return len(o.content)
}

// Type returns the Type of this object
func (o *Object) Type() Type {
	return o.typ
}

// Bytes returns the object's content, excluding the header
func (o *Object) Bytes() []byte {
	return o.content
}

func (o *Object) build() (oid ginternals.Oid, data []byte) {
	w := new(bytes.Buffer)
	w.WriteString(o.Type().String())
	w.WriteRune(' ')
	w.WriteString(strconv.Itoa(o.Size()))
	w.WriteByte(0)
	w.Write(o.Bytes())

	data = w.Bytes()
	oid = ginternals.NewOidFromContent(data)
	return oid, data
}

// Compress returns the object zlib-compressed, in the format objects are
// persisted as loose objects on disk:
// [type] [size][NULL][content]
func (o *Object) Compress() (data []byte, err error) {
	_, fileContent := o.build()

	compressedContent := new(bytes.Buffer)
	zw := zlib.NewWriter(compressedContent)
	defer errutil.Close(zw, &err)

	if _, err = zw.Write(fileContent); err != nil {
		return nil, xerrors.Errorf("could not zlib the object: %w", err)
	}
	return compressedContent.Bytes(), nil
}

// AsBlob returns the object as a Blob
func (o *Object) AsBlob() *Blob {
	return NewBlob(o)
}

// AsTree parses the object as a Tree
//
// A tree is a sequence of entries, each one formatted as:
//
//	{octal_mode} {path_name}\0{20-byte raw fingerprint}
func (o *Object) AsTree() (*Tree, error) {
	if o.typ != TypeTree {
		return nil, xerrors.Errorf("type %s is not a tree: %w", o.typ, ErrObjectInvalid)
	}
	return NewTreeFromObject(o)
}

// AsCommit parses the object as a Commit
//
// A commit has the following format:
//
//	tree {sha}
//	parent {sha}
//	author {name} <{email}> {seconds} {tz}
//	committer {name} <{email}> {seconds} {tz}
//	gpgsig -----BEGIN PGP SIGNATURE-----
//	{gpg key over multiple lines}
//	 -----END PGP SIGNATURE-----
//	{blank line}
//	{message}
//
// A commit may have 0 parents (the first commit of an orphan branch),
// 1 parent (a regular commit), or 2+ parents (a true merge commit).
// gpgsig is optional.
func (o *Object) AsCommit() (*Commit, error) {
	return NewCommitFromObject(o)
}

// AsTag parses the object as a Tag
//
// A tag has the following format:
//
//	object {sha}
//	type {target_type}
//	tag {name}
//	tagger {name} <{email}> {seconds} {tz}
//	gpgsig -----BEGIN PGP SIGNATURE-----
//	{gpg key over multiple lines}
//	 -----END PGP SIGNATURE-----
//	{blank line}
//	{message}
//
// gpgsig is optional.
func (o *Object) AsTag() (*Tag, error) {
	return NewTagFromObject(o)
}
