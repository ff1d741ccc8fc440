package object

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/internal/readutil"
)

// ErrSignatureInvalid is an error thrown when a commit/tag signature
// couldn't be parsed
var ErrSignatureInvalid = errors.New("signature is invalid")

// Signature represents the author/committer/tagger of a commit or tag,
// along with when the action happened
type Signature struct {
	Time  time.Time
	Name  string
	Email string
}

// String returns the on-disk representation of the Signature:
// "Name <email> timestamp tz"
func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.Time.Unix(), s.Time.Format("-0700"))
}

// IsZero returns whether the signature has its zero value
func (s Signature) IsZero() bool {
	return s.Time.IsZero() && s.Name == "" && s.Email == ""
}

// NewSignatureFromBytes parses a signature out of its on-disk format:
//
//	User Name <user.email@domain.tld> timestamp timezone
//
// Ex: Melvin Laplanche <melvin@example.com> 1566115917 -0700
func NewSignatureFromBytes(b []byte) (Signature, error) {
	sig := Signature{}

	data := readutil.ReadTo(b, '<')
	if len(data) == 0 {
		if len(b) == 0 {
			return sig, fmt.Errorf("couldn't retrieve the name: %w", ErrSignatureInvalid)
		}
		return sig, fmt.Errorf("signature stopped after the name: %w", ErrSignatureInvalid)
	}
	sig.Name = strings.TrimSpace(string(data))
	offset := len(data) + 1 // +1 to skip the "<"
	if offset >= len(b) {
		return sig, fmt.Errorf("couldn't retrieve the email: %w", ErrSignatureInvalid)
	}

	data = readutil.ReadTo(b[offset:], '>')
	if len(data) == 0 {
		return sig, fmt.Errorf("couldn't retrieve the email: %w", ErrSignatureInvalid)
	}
	sig.Email = string(data)
	offset += len(data) + 2 // +2 to skip "> "
	if offset >= len(b) {
		return sig, fmt.Errorf("signature stopped after the email: %w", ErrSignatureInvalid)
	}

	timestamp := readutil.ReadTo(b[offset:], ' ')
	if len(timestamp) == 0 {
		return sig, fmt.Errorf("couldn't retrieve the timestamp: %w", ErrSignatureInvalid)
	}
	offset += len(timestamp) + 1 // +1 to skip the space
	if offset >= len(b) {
		return sig, fmt.Errorf("signature stopped after the timestamp: %w", ErrSignatureInvalid)
	}

	t, err := strconv.ParseInt(string(timestamp), 10, 64)
	if err != nil {
		return sig, fmt.Errorf("invalid timestamp %s: %w", timestamp, err)
	}
	sig.Time = time.Unix(t, 0)

	timezone := b[offset:]
	tz, err := time.Parse("-0700", string(timezone))
	if err != nil {
		return sig, fmt.Errorf("invalid timezone format %s: %w", timezone, err)
	}
	sig.Time = sig.Time.In(tz.Location())
	return sig, nil
}

// CommitOptions represents the optional data used to build a commit
type CommitOptions struct {
	Message string
	GPGSig  string
	// Committer represents the person creating the commit. If not
	// provided, the author is used as committer.
	Committer Signature
	ParentsID []ginternals.Oid
}

// Commit represents a commit object
type Commit struct {
	rawObject *Object

	id ginternals.Oid

	author    Signature
	committer Signature

	gpgSig  string
	message string

	parentIDs []ginternals.Oid
	treeID    ginternals.Oid
}

// NewCommit creates a new in-memory Commit. Any provided Oids are not
// checked against the object database.
func NewCommit(treeID ginternals.Oid, author Signature, opts *CommitOptions) *Commit {
	c := &Commit{
		treeID:    treeID,
		author:    author,
		committer: opts.Committer,
		message:   opts.Message,
		parentIDs: opts.ParentsID,
		gpgSig:    opts.GPGSig,
	}
	if c.committer.IsZero() {
		c.committer = author
	}
	c.rawObject = c.ToObject()
	c.id = c.rawObject.ID()
	return c
}

// NewCommitFromObject decodes a Commit out of a raw Object
func NewCommitFromObject(o *Object) (*Commit, error) {
	if o.typ != TypeCommit {
		return nil, fmt.Errorf("type %s is not a commit: %w", o.typ, ErrObjectInvalid)
	}
	ci := &Commit{
		id:        o.ID(),
		rawObject: o,
	}
	offset := 0
	objData := o.Bytes()
	for {
		line := readutil.ReadTo(objData[offset:], '\n')
		offset += len(line) + 1 // +1 to count the \n

		if len(line) == 0 && offset == 1 {
			return nil, fmt.Errorf("could not find commit first line: %w", ErrCommitInvalid)
		}

		if len(line) == 0 {
			if offset < len(objData) {
				ci.message = string(objData[offset:])
			}
			break
		}

		kv := bytes.SplitN(line, []byte{' '}, 2)
		var err error
		switch string(kv[0]) {
		case "tree":
			ci.treeID, err = ginternals.NewOidFromChars(kv[1])
			if err != nil {
				return nil, fmt.Errorf("could not parse tree id %#v: %w", kv[1], err)
			}
		case "parent":
			var oid ginternals.Oid
			oid, err = ginternals.NewOidFromChars(kv[1])
			if err != nil {
				return nil, fmt.Errorf("could not parse parent id %#v: %w", kv[1], err)
			}
			ci.parentIDs = append(ci.parentIDs, oid)
		case "author":
			ci.author, err = NewSignatureFromBytes(kv[1])
			if err != nil {
				return nil, fmt.Errorf("could not parse author signature [%s]: %w", string(kv[1]), err)
			}
		case "committer":
			ci.committer, err = NewSignatureFromBytes(kv[1])
			if err != nil {
				return nil, fmt.Errorf("could not parse committer signature [%s]: %w", string(kv[1]), err)
			}
		case "gpgsig":
			begin := string(kv[1]) + "\n"
			end := "-----END PGP SIGNATURE-----"
			i := bytes.Index(objData[offset:], []byte(end))
			if i < 0 {
				return nil, fmt.Errorf("gpgsig missing terminator: %w", ErrCommitInvalid)
			}
			ci.gpgSig = begin + string(objData[offset:offset+i]) + end
			offset += len(end) + i + 1 // +1 to count the \n
		}
	}

	if ci.author.IsZero() {
		return nil, fmt.Errorf("commit has no author: %w", ErrCommitInvalid)
	}
	if ci.treeID.IsZero() {
		return nil, fmt.Errorf("commit has no tree: %w", ErrCommitInvalid)
	}

	return ci, nil
}

// ID returns the fingerprint of the commit object
func (c *Commit) ID() ginternals.Oid {
	return c.id
}

// Author returns the Signature of the person that made the changes
func (c *Commit) Author() Signature {
	return c.author
}

// Committer returns the Signature of the person that created the commit
func (c *Commit) Committer() Signature {
	return c.committer
}

// Message returns the commit's message
func (c *Commit) Message() string {
	return c.message
}

// Summary returns the first line of the commit's message
func (c *Commit) Summary() string {
	summary, _ := splitMessage(c.message)
	return summary
}

// Detail returns the commit's message with its summary line (and the
// blank line separating it from the rest) removed
func (c *Commit) Detail() string {
	_, detail := splitMessage(c.message)
	return detail
}

// ParentIDs returns the fingerprints of the parent commits, if any.
// - The first commit of an orphan branch has 0 parents
// - A regular commit or a fast-forward merge has 1 parent
// - A true (non-fast-forward) merge has 2+ parents
func (c *Commit) ParentIDs() []ginternals.Oid {
	out := make([]ginternals.Oid, len(c.parentIDs))
	copy(out, c.parentIDs)
	return out
}

// TreeID returns the fingerprint of the commit's tree
func (c *Commit) TreeID() ginternals.Oid {
	return c.treeID
}

// GPGSig returns the GPG signature of the commit, if any
func (c *Commit) GPGSig() string {
	return c.gpgSig
}

// ToObject returns the canonical Object backing this commit
func (c *Commit) ToObject() *Object {
	if c.rawObject != nil {
		return c.rawObject
	}

	buf := new(bytes.Buffer)
	buf.WriteString("tree ")
	buf.WriteString(c.treeID.String())
	buf.WriteByte('\n')

	for _, p := range c.parentIDs {
		buf.WriteString("parent ")
		buf.WriteString(p.String())
		buf.WriteByte('\n')
	}

	buf.WriteString("author ")
	buf.WriteString(c.Author().String())
	buf.WriteByte('\n')

	buf.WriteString("committer ")
	buf.WriteString(c.Committer().String())
	buf.WriteByte('\n')

	if c.gpgSig != "" {
		buf.WriteString("gpgsig ")
		buf.WriteString(c.gpgSig)
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
	buf.WriteString(c.message)
	return New(TypeCommit, buf.Bytes())
}
