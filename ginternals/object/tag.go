package object

import (
	"bytes"
	"fmt"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/internal/readutil"
)

// TagParams represents the data needed to create a Tag. Fields starting
// with Opt are optional.
type TagParams struct {
	Target    *Object
	Name      string
	Tagger    Signature
	Message   string
	OptGPGSig string
}

// Tag represents an annotated tag object
type Tag struct {
	rawObject *Object

	id      ginternals.Oid
	target  ginternals.Oid
	typ     Type
	tagger  Signature
	tag     string
	message string
	gpgSig  string
}

// NewTag creates a new in-memory Tag
func NewTag(p *TagParams) *Tag {
	t := &Tag{
		target:  p.Target.ID(),
		typ:     p.Target.Type(),
		tag:     p.Name,
		tagger:  p.Tagger,
		message: p.Message,
		gpgSig:  p.OptGPGSig,
	}
	t.rawObject = t.ToObject()
	t.id = t.rawObject.ID()
	return t
}

// NewTagFromObject decodes a Tag out of a raw Object
//
// A tag has the following format:
//
//	object {sha}
//	type {target_object_type}
//	tag {tag_name}
//	tagger {author_name} <{author_email}> {author_date_seconds} {author_date_timezone}
//	gpgsig -----BEGIN PGP SIGNATURE-----
//	{gpg key over multiple lines}
//	 -----END PGP SIGNATURE-----
//	{a blank line}
//	{tag message}
//
// gpgsig is optional.
func NewTagFromObject(o *Object) (*Tag, error) {
	if o.typ != TypeTag {
		return nil, fmt.Errorf("type %s is not a tag: %w", o.typ, ErrObjectInvalid)
	}
	tag := &Tag{
		id:        o.ID(),
		rawObject: o,
	}
	offset := 0
	objData := o.Bytes()
	var err error
	for {
		line := readutil.ReadTo(objData[offset:], '\n')
		offset += len(line) + 1 // +1 to count the \n

		if len(line) == 0 && offset == 1 {
			return nil, fmt.Errorf("could not find tag first line: %w", ErrTagInvalid)
		}

		if len(line) == 0 {
			if offset < len(objData) {
				tag.message = string(objData[offset:])
			}
			break
		}

		kv := bytes.SplitN(line, []byte{' '}, 2)
		switch string(kv[0]) {
		case "object":
			tag.target, err = ginternals.NewOidFromChars(kv[1])
			if err != nil {
				return nil, fmt.Errorf("could not parse target id %#v: %w", kv[1], err)
			}
		case "type":
			tag.typ, err = NewTypeFromString(string(kv[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid object type %s: %w", string(kv[1]), err)
			}
		case "tagger":
			tag.tagger, err = NewSignatureFromBytes(kv[1])
			if err != nil {
				return nil, fmt.Errorf("could not parse tagger [%s]: %w", string(kv[1]), err)
			}
		case "tag":
			tag.tag = string(kv[1])
		case "gpgsig":
			begin := string(kv[1]) + "\n"
			end := "-----END PGP SIGNATURE-----"
			i := bytes.Index(objData[offset:], []byte(end))
			if i < 0 {
				return nil, fmt.Errorf("gpgsig missing terminator: %w", ErrTagInvalid)
			}
			tag.gpgSig = begin + string(objData[offset:offset+i]) + end
			offset += len(end) + i + 1 // +1 to count the \n
		}
	}

	if tag.tagger.IsZero() {
		return nil, fmt.Errorf("tag has no tagger: %w", ErrTagInvalid)
	}
	if tag.target.IsZero() {
		return nil, fmt.Errorf("tag has no target: %w", ErrTagInvalid)
	}
	if !tag.typ.IsValid() {
		return nil, fmt.Errorf("tag has no type: %w", ErrTagInvalid)
	}

	return tag, nil
}

// ID returns the fingerprint of the tag object
func (t *Tag) ID() ginternals.Oid {
	return t.id
}

// Target returns the fingerprint of the object targeted by the tag
func (t *Tag) Target() ginternals.Oid {
	return t.target
}

// Type returns the type of the targeted object
func (t *Tag) Type() Type {
	return t.typ
}

// Name returns the tag's name
func (t *Tag) Name() string {
	return t.tag
}

// Tagger returns the Signature of the person that created the tag
func (t *Tag) Tagger() Signature {
	return t.tagger
}

// Message returns the tag's message
func (t *Tag) Message() string {
	return t.message
}

// Summary returns the tag message's summary line
func (t *Tag) Summary() string {
	summary, _ := splitMessage(t.message)
	return summary
}

// Detail returns the tag message's body, with the summary line (and the
// blank line separating it from the rest) removed
func (t *Tag) Detail() string {
	_, detail := splitMessage(t.message)
	return detail
}

// GPGSig returns the GPG signature of the tag, if any
func (t *Tag) GPGSig() string {
	return t.gpgSig
}

// ToObject returns the canonical Object backing this tag
func (t *Tag) ToObject() *Object {
	if t.rawObject != nil {
		return t.rawObject
	}

	buf := new(bytes.Buffer)
	buf.WriteString("object ")
	buf.WriteString(t.target.String())
	buf.WriteRune('\n')

	buf.WriteString("type ")
	buf.WriteString(t.Type().String())
	buf.WriteRune('\n')

	buf.WriteString("tag ")
	buf.WriteString(t.Name())
	buf.WriteRune('\n')

	buf.WriteString("tagger ")
	buf.WriteString(t.Tagger().String())
	buf.WriteRune('\n')

	if t.gpgSig != "" {
		buf.WriteString("gpgsig ")
		buf.WriteString(t.gpgSig)
		buf.WriteRune('\n')
	}

	buf.WriteRune('\n')
	buf.WriteString(t.message)
	t.rawObject = New(TypeTag, buf.Bytes())
	return t.rawObject
}
