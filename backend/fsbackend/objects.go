package fsbackend

import (
	"compress/zlib"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/ginternals/object"
	"github.com/solstice-oss/gitodb/ginternals/packfile"
	"github.com/solstice-oss/gitodb/internal/errutil"
	"github.com/solstice-oss/gitodb/internal/readutil"
)

// Object returns the object that has the given oid.
// This method can be called concurrently.
func (b *Backend) Object(oid ginternals.Oid) (*object.Object, error) {
	key := oid[:]
	b.objectMu.Lock(key)
	defer b.objectMu.Unlock(key)

	return b.objectUnsafe(oid)
}

func (b *Backend) objectUnsafe(oid ginternals.Oid) (*object.Object, error) {
	if cachedO, found := b.cache.Get(oid); found {
		if o, valid := cachedO.(*object.Object); valid {
			return o, nil
		}
	}

	// First let's look for a loose object
	o, err := b.looseObject(oid)
	if err == nil {
		b.cache.Add(oid, o)
		return o, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, xerrors.Errorf("failed looking for loose object: %w", err)
	}

	// Not found? Let's find it in a packfile
	o, err = b.objectFromPackfile(oid)
	if err != nil {
		return nil, err
	}
	b.cache.Add(oid, o)
	return o, nil
}

// looseObject returns the object matching the given oid.
// The format of an object is an ascii encoded type, an ascii encoded
// space, then an ascii encoded length of the object, then a null
// character, then the body of the object.
func (b *Backend) looseObject(oid ginternals.Oid) (o *object.Object, err error) {
	if _, exists := b.looseObjects.Load(oid); !exists {
		return nil, os.ErrNotExist
	}

	strOid := oid.String()
	p := ginternals.LooseObjectPath(b.layout, strOid)
	f, err := b.fs.Open(p)
	if err != nil {
		return nil, xerrors.Errorf("could not get object %s at path %s: %w", strOid, p, err)
	}
	defer errutil.Close(f, &err)

	// Objects are zlib encoded
	zlibReader, err := zlib.NewReader(f)
	if err != nil {
		return nil, xerrors.Errorf("could not decompress object %s at path %s: %w", strOid, p, err)
	}
	defer errutil.Close(zlibReader, &err)

	// We read the entire object at once since most of the file is the
	// content we need anyway; this keeps the content as a single slice
	// we can hand straight to object.New.
	buff, err := io.ReadAll(zlibReader)
	if err != nil {
		return nil, xerrors.Errorf("could not read object %s at path %s: %w", strOid, p, err)
	}

	pointerPos := 0

	// the type of the object starts at offset 0 and ends at the first
	// space character, which we trim off
	typ := readutil.ReadTo(buff, ' ')
	if typ == nil {
		return nil, xerrors.Errorf("could not find object type for %s at path %s: %w", strOid, p, object.ErrObjectInvalid)
	}
	oType, err := object.NewTypeFromString(string(typ))
	if err != nil {
		return nil, xerrors.Errorf("unsupported type %s for object %s at path %s: %w", string(typ), strOid, p, object.ErrObjectInvalid)
	}
	pointerPos += len(typ)
	pointerPos++ // one more for the space

	// The size of the object starts after the space and ends at a NULL
	// char, which we also trim off.
	size := readutil.ReadTo(buff[pointerPos:], 0)
	if size == nil {
		return nil, xerrors.Errorf("could not find object size for %s at path %s: %w", strOid, p, object.ErrObjectInvalid)
	}
	oSize, err := strconv.Atoi(string(size))
	if err != nil {
		return nil, xerrors.Errorf("invalid size %s for object %s at path %s: %w", size, strOid, p, object.ErrObjectInvalid)
	}
	pointerPos += len(size)
	pointerPos++                  // one more for the NULL char
	oContent := buff[pointerPos:] // sugar

	if len(oContent) != oSize {
		return nil, xerrors.Errorf("object %s declared as size %d, but has %d bytes at path %s: %w", strOid, oSize, len(oContent), p, ginternals.ErrCorruptObject)
	}

	return object.NewWithID(oid, oType, oContent), nil
}

// loadPacks opens every packfile found in objects/pack and indexes
// them by pack id
func (b *Backend) loadPacks() error {
	p := ginternals.ObjectsPacksPath(b.layout)
	return afero.Walk(b.fs, p, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			//nolint:nilerr // the ./objects/pack directory may not exist at
			// all, e.g. for a repo with no packed objects
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(info.Name()) != packfile.ExtPackfile {
			return nil
		}

		pack, err := packfile.NewFromFile(b.fs, path)
		if err != nil {
			return xerrors.Errorf("could not parse packfile at %s: %w", path, err)
		}
		id, err := pack.ID()
		if err != nil {
			return xerrors.Errorf("could not read the id of packfile %s: %w", path, err)
		}
		b.packfiles[id] = pack
		return nil
	})
}

// objectFromPackfile looks for an object in the packfiles loaded in memory
func (b *Backend) objectFromPackfile(oid ginternals.Oid) (*object.Object, error) {
	for _, pack := range b.packfiles {
		o, err := pack.GetObject(oid)
		if err == nil {
			return o, nil
		}
		if errors.Is(err, ginternals.ErrObjectNotFound) {
			continue
		}
		return nil, err
	}
	return nil, ginternals.ErrObjectNotFound
}

// HasObject returns whether an object exists in the odb.
// This method can be called concurrently.
func (b *Backend) HasObject(oid ginternals.Oid) (bool, error) {
	key := oid[:]
	b.objectMu.Lock(key)
	defer b.objectMu.Unlock(key)

	return b.hasObjectUnsafe(oid)
}

func (b *Backend) hasObjectUnsafe(oid ginternals.Oid) (bool, error) {
	_, err := b.objectUnsafe(oid)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ginternals.ErrObjectNotFound) {
		return false, nil
	}
	return false, xerrors.Errorf("could not get object: %w", err)
}

// WalkPackedObjectIDs runs the provided method on the oids of every
// object stored in every packfile
func (b *Backend) WalkPackedObjectIDs(f packfile.OidWalkFunc) error {
	for _, pack := range b.packfiles {
		if err := pack.WalkOids(f); err != nil {
			return err
		}
	}
	return nil
}

// loadLooseObject indexes the oids of every loose object on disk
func (b *Backend) loadLooseObject() error {
	objectsPath := ginternals.ObjectsPath(b.layout)
	return afero.Walk(b.fs, objectsPath, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			//nolint:nilerr // the ./objects directory may not exist at all,
			// e.g. for a freshly initialized empty repo
			return nil
		}
		if path == objectsPath {
			return nil
		}

		// We're only interested in directories named "00" up to "ff"
		if info.IsDir() {
			if !b.isLooseObjectDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		prefix := filepath.Base(filepath.Dir(path))
		if !b.isLooseObjectDir(prefix) {
			return filepath.SkipDir
		}
		if filepath.Ext(info.Name()) != "" {
			return filepath.SkipDir
		}

		sha := prefix + info.Name()
		oid, err := ginternals.NewOidFromStr(sha)
		if err != nil {
			return xerrors.Errorf("could not get oid from %s: %w", sha, err)
		}
		b.looseObjects.Store(oid, struct{}{})
		return nil
	})
}

// isLooseObjectDir checks if a directory name is anything between 00 and ff
func (b *Backend) isLooseObjectDir(name string) bool {
	if len(name) != 2 {
		return false
	}
	dirNum, err := strconv.ParseInt(name, 16, 64)
	return err == nil && dirNum >= 0x00 && dirNum <= 0xff
}

// WalkLooseObjectIDs runs the provided method on the oids of every
// loose object
func (b *Backend) WalkLooseObjectIDs(f packfile.OidWalkFunc) (err error) {
	b.looseObjects.Range(func(key, value interface{}) bool {
		err = f(key.(ginternals.Oid))
		if err != nil {
			if errors.Is(err, packfile.OidWalkStop) {
				err = nil
			}
			return false
		}
		return true
	})
	return err
}
