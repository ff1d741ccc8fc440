// Package gitodb is a read-only reader for the object database of a
// content-addressed version-control repository, in the on-disk layout
// popularized by Git. Given a path to a repository it resolves
// references, fetches objects by fingerprint across loose and packed
// storage (including delta chains), and parses them into typed
// commit/tree/blob/tag records.
package gitodb

import (
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/solstice-oss/gitodb/backend"
	"github.com/solstice-oss/gitodb/backend/fsbackend"
	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/ginternals/object"
	"github.com/solstice-oss/gitodb/repoconfig"
)

// ErrNoSuchRef is returned when a branch or tag name doesn't resolve
// to anything
var ErrNoSuchRef = ginternals.ErrRefNotFound

// Repository gives read-only access to a repository's object database:
// resolving references and retrieving typed objects by fingerprint.
// A Repository is safe for concurrent use by multiple goroutines.
type Repository struct {
	layout  *repoconfig.Layout
	backend backend.Backend
}

// Open resolves the repository reachable from path (a working
// directory, a gitdir-pointer file, or a bare git directory) and
// indexes its loose objects, packfiles, and references.
func Open(path string) (*Repository, error) {
	return OpenFs(afero.NewOsFs(), path)
}

// OpenFs is like Open but reads through the provided afero.Fs instead
// of the real filesystem. Mostly useful for tests.
func OpenFs(fs afero.Fs, path string) (*Repository, error) {
	layout, err := repoconfig.Discover(fs, path)
	if err != nil {
		return nil, xerrors.Errorf("could not resolve repository layout: %w", err)
	}
	if err := repoconfig.CheckSupported(fs, layout); err != nil {
		return nil, xerrors.Errorf("could not open repository: %w", err)
	}

	b, err := fsbackend.New(fs, layout)
	if err != nil {
		return nil, xerrors.Errorf("could not open object database: %w", err)
	}

	return &Repository{layout: layout, backend: b}, nil
}

// Close releases every resource (open packfiles) held by the repository
func (r *Repository) Close() error {
	return r.backend.Close()
}

// GetObject returns the object matching the given fingerprint.
// ginternals.ErrObjectNotFound is returned if no loose object or
// packed object matches.
func (r *Repository) GetObject(oid ginternals.Oid) (*object.Object, error) {
	o, err := r.backend.Object(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not get object %s: %w", oid.String(), err)
	}
	return o, nil
}

// HasObject returns whether an object exists in the database
func (r *Repository) HasObject(oid ginternals.Oid) (bool, error) {
	return r.backend.HasObject(oid)
}

// GetTip resolves a branch or tag short name (or a fully qualified ref
// name containing a "/") to the fingerprint it currently points at.
//
// A bare name is first looked up as a local branch (refs/heads/<name>),
// then as a tag (refs/tags/<name>).
func (r *Repository) GetTip(name string) (ginternals.Oid, error) {
	candidates := []string{name}
	if !strings.Contains(name, "/") {
		candidates = []string{
			ginternals.LocalBranchFullName(name),
			ginternals.LocalTagFullName(name),
		}
	}

	var lastErr error
	for _, candidate := range candidates {
		ref, err := r.backend.Reference(candidate)
		if err == nil {
			return ref.Target(), nil
		}
		lastErr = err
	}
	return ginternals.NullOid, xerrors.Errorf("could not resolve %s: %w", name, lastErr)
}

// GetHead returns the current HEAD reference, always resolved to a
// fingerprint. When HEAD is symbolic, the returned Reference carries
// both the name of the ref HEAD points at (SymbolicTarget) and that
// ref's fingerprint (Target); if that ref does not exist, an error is
// returned instead of the bare ref name. There is no way to skip the
// resolution.
func (r *Repository) GetHead() (*ginternals.Reference, error) {
	ref, err := r.backend.Reference(ginternals.Head)
	if err != nil {
		return nil, xerrors.Errorf("could not resolve HEAD: %w", err)
	}
	return ref, nil
}

// ListRefs returns every reference known to the repository, keyed by
// fully qualified name (refs/heads/..., refs/tags/..., HEAD, etc).
// Loose references shadow packed-refs entries of the same name.
func (r *Repository) ListRefs() (map[string]*ginternals.Reference, error) {
	refs := map[string]*ginternals.Reference{}
	err := r.backend.WalkReferences(func(ref *ginternals.Reference) error {
		refs[ref.Name()] = ref
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("could not list references: %w", err)
	}
	return refs, nil
}

// ListTags returns every tag reference, keyed by its short name
// (e.g. "v1.2.3" for "refs/tags/v1.2.3").
func (r *Repository) ListTags() (map[string]*ginternals.Reference, error) {
	all, err := r.ListRefs()
	if err != nil {
		return nil, err
	}
	tags := map[string]*ginternals.Reference{}
	for name, ref := range all {
		if strings.HasPrefix(name, "refs/tags/") {
			tags[ginternals.LocalTagShortName(name)] = ref
		}
	}
	return tags, nil
}
