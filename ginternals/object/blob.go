package object

import "github.com/solstice-oss/gitodb/ginternals"

// Blob represents a blob object: an opaque byte payload with no
// structure of its own (typically file content)
type Blob struct {
	rawObject *Object
}

// NewBlob returns a new Blob wrapping a git Object
func NewBlob(o *Object) *Blob {
	return &Blob{
		rawObject: o,
	}
}

// ID returns the blob's fingerprint
func (b *Blob) ID() ginternals.Oid {
	return b.rawObject.ID()
}

// Bytes returns the blob's content
func (b *Blob) Bytes() []byte {
	return b.rawObject.content
}

// BytesCopy returns a copy of the blob's content
func (b *Blob) BytesCopy() []byte {
	out := make([]byte, len(b.rawObject.content))
	copy(out, b.rawObject.content)
	return out
}

// Size returns the size of the blob
func (b *Blob) Size() int {
	return len(b.rawObject.content)
}

// ToObject returns the Blob's underlying Object
func (b *Blob) ToObject() *Object {
	return b.rawObject
}
