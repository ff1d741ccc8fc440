// Package fsbackend contains a read-only implementation of the
// backend.Backend interface backed by an afero.Fs. It loads the
// reference and loose-object namespaces into memory once at open time,
// and lazily opens packfiles found under objects/pack.
package fsbackend

import (
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/solstice-oss/gitodb/backend"
	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/ginternals/packfile"
	"github.com/solstice-oss/gitodb/internal/cache"
	"github.com/solstice-oss/gitodb/internal/syncutil"
	"github.com/solstice-oss/gitodb/repoconfig"
)

// we make sure the struct implements the interface
var _ backend.Backend = (*Backend)(nil)

// objectMuStripes is the number of stripes used to lock object reads
// by oid. Using more than one key per lock lets concurrent reads of
// unrelated objects proceed without contending on a single mutex.
const objectMuStripes = 64

// Backend is a backend.Backend implementation that reads from a
// filesystem laid out the way a real .git directory is.
type Backend struct {
	fs     afero.Fs
	layout *repoconfig.Layout

	cache    *cache.LRU
	objectMu *syncutil.NamedMutex

	looseObjects sync.Map // ginternals.Oid -> struct{}
	packfiles    map[ginternals.Oid]*packfile.Pack

	refs sync.Map // string (ref name) -> []byte (raw content)
}

// New opens a Backend rooted at the repository described by layout.
// It eagerly indexes the loose objects, packfiles and references found
// on disk so later lookups don't need to re-walk the filesystem.
func New(fs afero.Fs, layout *repoconfig.Layout) (*Backend, error) {
	b := &Backend{
		fs:        fs,
		layout:    layout,
		// the decoded-object cache is unbounded for the life of the
		// Backend: entries are immutable once populated, and nothing
		// in this reader ever evicts them.
		cache:     cache.NewLRU(0),
		objectMu:  syncutil.NewNamedMutex(objectMuStripes),
		packfiles: map[ginternals.Oid]*packfile.Pack{},
	}

	if err := b.loadLooseObject(); err != nil {
		return nil, xerrors.Errorf("could not load loose objects: %w", err)
	}
	if err := b.loadPacks(); err != nil {
		return nil, xerrors.Errorf("could not load packfiles: %w", err)
	}
	if err := b.loadRefs(); err != nil {
		return nil, xerrors.Errorf("could not load references: %w", err)
	}

	return b, nil
}

// Path returns the path of the git directory this backend reads from
func (b *Backend) Path() string {
	return b.layout.GitDirPath
}

// Close releases every packfile this backend has opened
func (b *Backend) Close() error {
	var err error
	for _, p := range b.packfiles {
		if cErr := p.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}
	return err
}
