package packfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sort"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/solstice-oss/gitodb/ginternals"
)

const (
	fanoutEntries   = 256
	fanoutEntrySize = 4
	fanoutTableSize = fanoutEntries * fanoutEntrySize // 1024

	// v1EntrySize is the size of a single entry of the object table that
	// follows the fanout table in a v1 index: a 4 byte offset followed by
	// the object's 20 byte oid.
	v1EntrySize = 4 + ginternals.OidSize

	crcEntrySize    = 4
	offsetEntrySize = 4
)

var idxV2Magic = []byte{255, 't', 'O', 'c'}

var (
	// ErrIndexVersion is returned when an index file advertises a
	// version we don't know how to read
	ErrIndexVersion = errors.New("unsupported index version")
	// ErrUnsupportedLargePack is returned when an index entry's offset
	// has its MSB set, meaning the real offset lives in the 64-bit
	// layer reserved for packfiles bigger than 2GB
	ErrUnsupportedLargePack = errors.New("packfiles larger than 2GB are not supported")
)

// PackIndex represents a packfile's index file (.idx), which maps object
// ids to their byte offset inside the corresponding packfile.
//
// Both index formats are supported:
//
//   - v1: a 1024 byte fanout table followed by objectCount entries of
//     (4 byte offset, 20 byte oid), sorted by oid.
//   - v2: an 8 byte header (magic + version), a 1024 byte fanout table,
//     then the oids, CRCs, and offsets each stored in their own table
//     (see https://git-scm.com/docs/pack-format).
//
// Rather than loading every entry into memory, GetObjectOffset uses the
// fanout table to narrow the search down to the handful of entries that
// share the oid's first byte, then binary searches that range directly
// on the underlying file.
type PackIndex struct {
	r       afero.File
	version int

	fanout      [fanoutEntries]uint32
	objectCount int

	// oidTableOffset is the byte offset of the first oid entry
	oidTableOffset int64
	// offsetTableOffset is the byte offset of the first (4 byte, v2) or
	// combined (24 byte, v1) offset entry
	offsetTableOffset int64
}

// NewIndex returns an index object from the given file
func NewIndex(r afero.File) (idx *PackIndex, err error) {
	header := make([]byte, 8)
	if _, err = io.ReadFull(r, header); err != nil {
		return nil, xerrors.Errorf("could not read index header: %w", err)
	}

	idx = &PackIndex{r: r}
	if bytes.Equal(header[:4], idxV2Magic) {
		version := binary.BigEndian.Uint32(header[4:8])
		if version != 2 {
			return nil, xerrors.Errorf("index version %d: %w", version, ErrIndexVersion)
		}
		idx.version = 2
	} else {
		idx.version = 1
		// the 8 bytes we just consumed are actually the start of the
		// fanout table, so we need to go back to the beginning
		if _, err = r.Seek(0, io.SeekStart); err != nil {
			return nil, xerrors.Errorf("could not rewind index file: %w", err)
		}
	}

	fanoutBuf := make([]byte, fanoutTableSize)
	if _, err = io.ReadFull(r, fanoutBuf); err != nil {
		return nil, xerrors.Errorf("could not read fanout table: %w", err)
	}
	for i := 0; i < fanoutEntries; i++ {
		idx.fanout[i] = binary.BigEndian.Uint32(fanoutBuf[i*fanoutEntrySize : (i+1)*fanoutEntrySize])
	}
	idx.objectCount = int(idx.fanout[fanoutEntries-1])

	fanoutEnd := int64(fanoutTableSize)
	if idx.version == 2 {
		fanoutEnd += 8
	}
	if idx.version == 1 {
		idx.oidTableOffset = fanoutEnd + 4
		idx.offsetTableOffset = fanoutEnd
		return idx, nil
	}

	oidTableSize := int64(idx.objectCount) * ginternals.OidSize
	crcTableSize := int64(idx.objectCount) * crcEntrySize
	idx.oidTableOffset = fanoutEnd
	idx.offsetTableOffset = fanoutEnd + oidTableSize + crcTableSize
	return idx, nil
}

// GetObjectOffset returns the offset of oid in the packfile.
// If the object is not found ginternals.ErrObjectNotFound is returned.
// If the object's offset requires the 64-bit large-pack extension,
// ErrUnsupportedLargePack is returned.
func (idx *PackIndex) GetObjectOffset(oid ginternals.Oid) (uint64, error) {
	bucket := oid[0]
	lo := uint32(0)
	if bucket > 0 {
		lo = idx.fanout[bucket-1]
	}
	hi := idx.fanout[bucket]

	var readErr error
	pos := sort.Search(int(hi-lo), func(i int) bool {
		candidate, err := idx.oidAt(int(lo) + i)
		if err != nil {
			readErr = err
			return true
		}
		return bytes.Compare(candidate[:], oid[:]) >= 0
	})
	if readErr != nil {
		return 0, xerrors.Errorf("could not read oid table: %w", readErr)
	}

	i := int(lo) + pos
	if i >= int(hi) {
		return 0, ginternals.ErrObjectNotFound
	}
	candidate, err := idx.oidAt(i)
	if err != nil {
		return 0, xerrors.Errorf("could not read oid table: %w", err)
	}
	if candidate != oid {
		return 0, ginternals.ErrObjectNotFound
	}
	return idx.offsetAt(i)
}

// oidAt returns the oid stored at entry i of the sorted oid table
func (idx *PackIndex) oidAt(i int) (ginternals.Oid, error) {
	buf := make([]byte, ginternals.OidSize)
	var off int64
	if idx.version == 1 {
		off = idx.oidTableOffset + int64(i)*v1EntrySize
	} else {
		off = idx.oidTableOffset + int64(i)*ginternals.OidSize
	}
	if _, err := idx.r.ReadAt(buf, off); err != nil {
		return ginternals.NullOid, err
	}
	var oid ginternals.Oid
	copy(oid[:], buf)
	return oid, nil
}

// offsetAt returns the packfile offset of entry i
func (idx *PackIndex) offsetAt(i int) (uint64, error) {
	buf := make([]byte, offsetEntrySize)
	if idx.version == 1 {
		off := idx.offsetTableOffset + int64(i)*v1EntrySize
		if _, err := idx.r.ReadAt(buf, off); err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(buf)), nil
	}

	off := idx.offsetTableOffset + int64(i)*offsetEntrySize
	if _, err := idx.r.ReadAt(buf, off); err != nil {
		return 0, err
	}
	entry := binary.BigEndian.Uint32(buf)
	if entry&0x8000_0000 != 0 {
		return 0, ErrUnsupportedLargePack
	}
	return uint64(entry), nil
}
