package fsbackend

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/solstice-oss/gitodb/backend"
	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/internal/errutil"
)

// Reference returns a stored reference from its name.
// ginternals.ErrRefNotFound is returned if the reference doesn't exist.
// This method can be called concurrently.
func (b *Backend) Reference(name string) (*ginternals.Reference, error) {
	finder := func(name string) ([]byte, error) {
		data, ok := b.refs.Load(name)
		if !ok {
			return nil, xerrors.Errorf(`ref "%s": %w`, name, ginternals.ErrRefNotFound)
		}
		return data.([]byte), nil
	}
	return ginternals.ResolveReference(name, finder)
}

// systemPath returns the path of a reference relative to the git dir
func (b *Backend) systemPath(name string) string {
	return filepath.Join(b.Path(), filepath.FromSlash(name))
}

// loadRefs loads every reference, packed or loose, into memory
func (b *Backend) loadRefs() (err error) {
	// We first parse the packed-refs file, which may or may not exist,
	// and may contain references that are overwritten below by
	// fresher, on-disk loose refs.
	packedRefPath := ginternals.PackedRefsPath(b.layout)
	f, openErr := b.fs.Open(packedRefPath)
	if openErr != nil && !errors.Is(openErr, os.ErrNotExist) {
		return xerrors.Errorf("could not open %s: %w", packedRefPath, openErr)
	}
	if openErr == nil {
		err = b.parsePackedRefsFile(f, packedRefPath)
		errutil.Close(f, &err)
		if err != nil {
			return err
		}
	}

	// Now we browse all the loose references on disk
	refsPath := ginternals.RefsPath(b.layout)
	walkErr := afero.Walk(b.fs, refsPath, func(path string, info fs.FileInfo, e error) error {
		if path == refsPath {
			return nil
		}
		if e != nil {
			return xerrors.Errorf("could not walk %s: %w", path, e)
		}
		if info.IsDir() {
			return nil
		}
		data, e := afero.ReadFile(b.fs, path)
		if e != nil {
			return xerrors.Errorf("could not read reference at %s: %w", path, e)
		}
		relPath, e := filepath.Rel(b.Path(), path)
		if e != nil {
			return xerrors.Errorf("could not resolve %s relative to %s: %w", path, b.Path(), e)
		}
		b.refs.Store(filepath.ToSlash(relPath), data)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, os.ErrNotExist) {
		return xerrors.Errorf("could not browse the refs directory: %w", walkErr)
	}

	// Finally we look for the special HEAD-like references, which
	// live directly at the root of the git directory
	headPaths := []string{
		ginternals.Head,
		ginternals.OrigHead,
		ginternals.MergeHead,
		ginternals.CherryPickHead,
	}
	for _, p := range headPaths {
		data, e := afero.ReadFile(b.fs, filepath.Join(b.Path(), p))
		if e != nil {
			if errors.Is(e, os.ErrNotExist) {
				continue
			}
			return xerrors.Errorf("could not read reference at %s: %w", p, e)
		}
		b.refs.Store(p, data)
	}

	return nil
}

// parsePackedRefsFile parses the packed-refs format documented at
// https://git-scm.com/docs/git-pack-refs and stores every entry found
func (b *Backend) parsePackedRefsFile(f afero.File, path string) error {
	sc := bufio.NewScanner(f)
	for i := 1; sc.Scan(); i++ {
		line := sc.Text()
		// we skip empty lines, comments, and annotated tag commits
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		// each data line has the format "oid ref-name"
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			return xerrors.Errorf("could not parse %s, unexpected data on line %d: %w", path, i, ginternals.ErrPackedRefInvalid)
		}
		b.refs.Store(filepath.ToSlash(parts[1]), []byte(parts[0]))
	}
	if sc.Err() != nil {
		return xerrors.Errorf("could not parse %s: %w", path, sc.Err())
	}
	return nil
}

// WalkReferences runs the provided method on all the references
func (b *Backend) WalkReferences(f backend.RefWalkFunc) error {
	var topErr error
	b.refs.Range(func(key, value interface{}) bool {
		name, ok := key.(string)
		if !ok {
			topErr = xerrors.Errorf("invalid key type for reference name, expected string got %T", key)
			return false
		}
		ref, err := b.Reference(name)
		if err != nil {
			topErr = xerrors.Errorf("could not resolve reference %s: %w", name, err)
			return false
		}
		if err = f(ref); err != nil {
			if !errors.Is(err, backend.WalkStop) {
				topErr = err
			}
			return false
		}
		return true
	})
	return topErr
}
