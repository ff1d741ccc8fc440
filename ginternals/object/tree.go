package object

import (
	"bytes"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/internal/readutil"
)

// TreeObjectMode represents the mode of an entry inside a tree.
// Non-standard modes (like 0o100664) are not supported.
type TreeObjectMode int32

const (
	// ModeFile represents the mode used for a regular file
	ModeFile TreeObjectMode = 0o100644
	// ModeExecutable represents the mode used for an executable file
	ModeExecutable TreeObjectMode = 0o100755
	// ModeDirectory represents the mode used for a directory
	ModeDirectory TreeObjectMode = 0o040000
	// ModeSymLink represents the mode used for a symbolic link
	ModeSymLink TreeObjectMode = 0o120000
	// ModeGitLink represents the mode used for a gitlink (submodule)
	ModeGitLink TreeObjectMode = 0o160000
)

// IsValid returns whether the mode is a supported mode
func (m TreeObjectMode) IsValid() bool {
	switch m {
	case ModeFile, ModeExecutable, ModeDirectory, ModeSymLink, ModeGitLink:
		return true
	default:
		return false
	}
}

// ObjectType returns the object type associated with a mode
func (m TreeObjectMode) ObjectType() Type {
	switch m {
	case ModeDirectory:
		return TypeTree
	case ModeGitLink:
		return TypeCommit
	case ModeExecutable, ModeFile, ModeSymLink:
		return TypeBlob
	default:
		return TypeBlob
	}
}

// Tree represents a git tree object
type Tree struct {
	rawObject *Object
	// we don't use pointers so entries stay immutable from the caller's
	// perspective
	entries []TreeEntry
}

// TreeEntry represents one entry inside a git tree
type TreeEntry struct {
	Path string
	ID   ginternals.Oid
	Mode TreeObjectMode
}

// NewTree returns a new in-memory Tree with the given entries
func NewTree(entries []TreeEntry) *Tree {
	t := &Tree{
		entries: entries,
	}
	t.rawObject = t.ToObject()
	return t
}

// NewTreeFromObject decodes a Tree out of a raw Object
//
// A tree is a back-to-back sequence of entries, each formatted as:
//
//	{octal_mode} {path_name}\0{20-byte raw fingerprint}
func NewTreeFromObject(o *Object) (*Tree, error) {
	if o.Type() != TypeTree {
		return nil, xerrors.Errorf("type %s is not a tree: %w", o.typ, ErrObjectInvalid)
	}

	entries := []TreeEntry{}

	objData := o.Bytes()
	if len(objData) > 0 {
		offset := 0
		// i is only used for error messages
		for i := 1; ; i++ {
			entry := TreeEntry{}
			data := readutil.ReadTo(objData[offset:], ' ')
			if len(data) == 0 {
				return nil, xerrors.Errorf("could not retrieve the mode of entry %d: %w", i, ErrTreeInvalid)
			}
			offset += len(data) + 1 // +1 for the space
			mode, err := strconv.ParseInt(string(data), 8, 32)
			if err != nil {
				return nil, xerrors.Errorf("could not parse mode of entry %d: %s: %w", i, err.Error(), ErrTreeInvalid)
			}
			entry.Mode = TreeObjectMode(mode)

			data = readutil.ReadTo(objData[offset:], 0)
			if len(data) == 0 {
				return nil, xerrors.Errorf("could not retrieve the path of entry %d: %w", i, ErrTreeInvalid)
			}
			offset += len(data) + 1 // +1 for the \0
			entry.Path = string(data)

			if offset+ginternals.OidSize > len(objData) {
				return nil, xerrors.Errorf("not enough space to retrieve the ID of entry %d: %w", i, ErrTreeInvalid)
			}
			entry.ID, err = ginternals.NewOidFromHex(objData[offset : offset+ginternals.OidSize])
			if err != nil {
				return nil, xerrors.Errorf("invalid fingerprint for entry %d (%s): %w", i, err.Error(), ErrTreeInvalid)
			}
			offset += ginternals.OidSize

			entries = append(entries, entry)
			if len(objData) == offset {
				break
			}
		}
	}
	return &Tree{
		rawObject: o,
		entries:   entries,
	}, nil
}

// Entries returns a copy of the tree's entries
func (t *Tree) Entries() []TreeEntry {
	out := make([]TreeEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// ID returns the tree's fingerprint
func (t *Tree) ID() ginternals.Oid {
	return t.rawObject.ID()
}

// ToObject returns the canonical Object backing this tree
func (t *Tree) ToObject() *Object {
	buf := new(bytes.Buffer)

	for _, e := range t.entries {
		buf.WriteString(strconv.FormatInt(int64(e.Mode), 8))
		buf.WriteByte(' ')
		buf.WriteString(e.Path)
		buf.WriteByte(0)
		buf.Write(e.ID.Bytes())
	}

	return New(TypeTree, buf.Bytes())
}
