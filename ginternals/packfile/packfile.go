// Package packfile contains methods to read packfiles: git's format for
// storing many objects, optionally delta-compressed against each other,
// inside a single file alongside a .idx companion used to look up an
// object's byte offset by its fingerprint.
package packfile

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/ginternals/object"
)

const (
	// packfileHeaderSize contains the size of the header of a packfile.
	// the first 4 bytes contain the magic, the 4 next bytes contains the
	// version, and the last 4 bytes contains the number of objects in
	// the packfile, for a total of 12 bytes
	packfileHeaderSize = 12

	// ExtPackfile is the file extension used by packfiles
	ExtPackfile = ".pack"
	// ExtIndex is the file extension used by a packfile's index
	ExtIndex = ".idx"
)

func packfileMagic() []byte {
	return []byte{'P', 'A', 'C', 'K'}
}

func packfileVersion() []byte {
	return []byte{0, 0, 0, 2}
}

var (
	// ErrIntOverflow is an error thrown when the packfile couldn't
	// be parsed because some data couldn't fit in an int64
	ErrIntOverflow = errors.New("int64 overflow")
	// ErrInvalidMagic is an error thrown when a file doesn't have
	// the expected magic.
	ErrInvalidMagic = errors.New("invalid magic")
	// ErrInvalidVersion is an error thrown when a file has an
	// unsupported version
	ErrInvalidVersion = errors.New("invalid version")
)

// Pack represents a read-only view of a packfile
//
// The packfile contains a header, a content, and a footer
// Header: 12 bytes
//         The first 4 bytes contain the magic ('P', 'A', 'C', 'K')
//         The next 4 bytes contains the version (0, 0, 0, 2)
//         The last 4 bytes contains the number of objects in the packfile
// Content: Variable size
//          The content contains all the objects of the packfile, each zlib
//          compressed.
//          Before every zlib compressed objects comes a few bytes of
//          metadata about the object (the type and size of the object).
//          The size of the metadata is variable, so every byte contains
//          a MSB (Most Significant bit, the most left bit of a byte) that
//          indicates if the next byte is also part of the size or not.
//          The very first byte of the metadata contains:
//          - The MSB (1 bit)
//          - The type of the object (3 bits)
//          - the beginning of the size (4 bits)
//          The subsequent bytes contains:
//          - The MSB (1 bit)
//			- The next part of the size (7 bits)
//         The chucks of the size are little-endian encoded (right to left):
//         Final_size = [part_2][part_1][part_0]
//         /!\ The size of the object cannot be used to extract the
//         object. The size corresponds to the real size of the object
//         and not the size of the zlib compressed object (which is)
//         what we have here). It's possible that the compressed object
//         has a bigger size than the de-compressed object.
// Footer: 20 bytes
//         Contains the SHA1 sum of the packfile (without this SHA)
// https://github.com/git/git/blob/master/Documentation/technical/pack-format.txt
type Pack struct {
	r       afero.File
	idxFile afero.File
	idx     *PackIndex
	header  [packfileHeaderSize]byte
	id      ginternals.Oid

	// Mutex used to protect the exported methods from being called
	// concurrently
	mu sync.Mutex
}

// NewFromFile returns a pack object from the given file.
// The pack will need to be closed using Close()
func NewFromFile(fs afero.Fs, filePath string) (pack *Pack, err error) {
	f, err := fs.Open(filePath)
	if err != nil {
		return nil, xerrors.Errorf("could not open %s: %w", filePath, err)
	}
	defer func() {
		if err != nil {
			f.Close() //nolint:errcheck // it already failed
		}
	}()

	p := &Pack{
		r:  f,
		id: ginternals.NullOid,
	}

	// Let's validate the header
	_, err = f.ReadAt(p.header[:], 0)
	if err != nil {
		return nil, xerrors.Errorf("could read header of packfile: %w", err)
	}
	if !bytes.Equal(p.header[0:4], packfileMagic()) {
		return nil, xerrors.Errorf("invalid header: %w", ErrInvalidMagic)
	}
	if !bytes.Equal(p.header[4:8], packfileVersion()) {
		return nil, xerrors.Errorf("invalid header: %w", ErrInvalidVersion)
	}

	// Now we load the index file
	indexFilePath := strings.TrimSuffix(filePath, ExtPackfile) + ExtIndex
	p.idxFile, err = fs.Open(indexFilePath)
	if err != nil {
		return nil, xerrors.Errorf("could not open %s: %w", indexFilePath, err)
	}
	defer func() {
		if err != nil {
			p.idxFile.Close() //nolint:errcheck // it already failed
		}
	}()
	p.idx, err = NewIndex(p.idxFile)
	if err != nil {
		return nil, xerrors.Errorf("could create index for %s: %w", indexFilePath, err)
	}

	return p, nil
}

// getRawObjectAt returns the raw object located at the given offset,
// including its base info if the object is a delta
func (pck *Pack) getRawObjectAt(oid ginternals.Oid, objectOffset uint64) (o *object.Object, deltaBaseSHA ginternals.Oid, deltaBaseOffset uint64, err error) {
	_, err = pck.r.Seek(int64(objectOffset), io.SeekStart)
	if err != nil {
		return nil, ginternals.NullOid, 0, xerrors.Errorf("could not seek from 0 to object offset %d: %w", objectOffset, err)
	}
	buf := bufio.NewReader(pck.r)

	// parse the metadata of the object
	// the metadata is X bytes long and contains:
	// 1 first byte that contains
	//   - a MSB (1 bit)
	//   - the Object type (3 bits)
	//   - the beginning of the object size (4 bits)
	// X more bytes that contains:
	//   - a MSB (a bit)
	//   - the next part of the size (7 bits)
	// Once the MSB of a byte is 0 it means the byte is the last
	// one we need to read.
	// Assuming the worst case scenario (64 bits) we need to read at most
	// 10 bytes, so we peek that much right away.
	metadata, err := buf.Peek(10)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, ginternals.NullOid, 0, xerrors.Errorf("could not get object meta: %w", err)
	}
	if len(metadata) == 0 {
		return nil, ginternals.NullOid, 0, xerrors.Errorf("truncated object entry: %w", io.ErrUnexpectedEOF)
	}

	// We now need to extract the type of the object. The type is a number
	// between 1 and 7.
	// To extract it (bits 2, 3, and 4) we apply a mask to unset
	// all the bits we don't want, then we move our 3 bits to the
	// right with ">> 4"
	// value       : MTTT_SSSS // M = MSB ; T = type ; S = size
	// & 0111_0000 : 0TTT_0000
	// >> 4        : 0000_0TTT
	objectType := object.Type((metadata[0] & 0b_0111_0000) >> 4)
	if !objectType.IsValid() {
		return nil, ginternals.NullOid, 0, xerrors.Errorf("unknown object type %d", objectType)
	}

	// The first part of the size is on the last 4 bits of the byte.
	objectSize := uint64(metadata[0] & 0b_0000_1111)
	metadataSize := 1

	// To know if we need to read more bytes, we need to check the MSB
	// 1 = we read more, 0 = we're done
	if isMSBSet(metadata[0]) {
		size, byteRead, sizeErr := readSize(metadata[1:])
		if sizeErr != nil {
			return nil, ginternals.NullOid, 0, xerrors.Errorf("couldn't read object size: %w", sizeErr)
		}
		metadataSize += byteRead
		// we add 4bits to the right of $size, then we merge everything with |
		objectSize |= size << 4
	}

	// Since we used Peek() to get the metadata (because we didn't know its
	// size), we now need to discard the right amount of bytes to move
	// our internal cursor to the object data
	if _, err = buf.Discard(metadataSize); err != nil {
		return nil, ginternals.NullOid, 0, xerrors.Errorf("could not skip the metadata: %w", err)
	}

	// Some objects are deltified and need extra parsing before getting to
	// the object content.
	// This is a way for git to only store the changes between 2 similar
	// objects instead of storing 2 full objects. This reduces disk usage.
	// There's 2 types of delta:
	// Refs: This delta contains the SHA of the base object
	// ofs: This Delta contains a negative offset to the base object
	var baseObjectOffset uint64
	var baseObjectOid ginternals.Oid
	switch objectType { //nolint:exhaustive // only 2 types have a special treatment
	case object.ObjectDeltaRef:
		baseObjectSHA := make([]byte, ginternals.OidSize)
		_, err = io.ReadFull(buf, baseObjectSHA)
		if err != nil {
			return nil, ginternals.NullOid, 0, xerrors.Errorf("could not get base object SHA: %w", err)
		}
		baseObjectOid, err = ginternals.NewOidFromHex(baseObjectSHA)
		if err != nil {
			return nil, ginternals.NullOid, 0, xerrors.Errorf("could not parse base object SHA %#v: %w", baseObjectSHA, err)
		}
	case object.ObjectDeltaOFS:
		// we're assuming the offset is no bigger than 9 bytes to fit an
		// int64. We use 9 instead of 8 because the numbers are on 7 bits
		// instead of 8 so we need to read an extra byte
		offsetParts, peekErr := buf.Peek(9)
		if peekErr != nil && peekErr != io.EOF && peekErr != bufio.ErrBufferFull {
			return nil, ginternals.NullOid, 0, xerrors.Errorf("could not get base object offset: %w", peekErr)
		}
		offset, bytesRead, readErr := readDeltaOffset(offsetParts)
		if readErr != nil {
			return nil, ginternals.NullOid, 0, xerrors.Errorf("couldn't read base object offset: %w", readErr)
		}
		if offset >= objectOffset {
			return nil, ginternals.NullOid, 0, xerrors.Errorf("ofs-delta base offset %d is not strictly before the object itself (%d): %w", offset, objectOffset, ErrMalformedDelta)
		}
		baseObjectOffset = objectOffset - offset

		// Since we used Peek() because we didn't know the offset size, we
		// now need to discard the right amount of bytes to move our
		// internal cursor to the object data
		if _, err = buf.Discard(bytesRead); err != nil {
			return nil, ginternals.NullOid, 0, xerrors.Errorf("could not skip the offset: %w", err)
		}
	}

	// We can now fetch the actual data of the object, which is zlib encoded
	zlibR, err := zlib.NewReader(buf)
	if err != nil {
		return nil, ginternals.NullOid, 0, xerrors.Errorf("could not get zlib reader: %w", err)
	}
	defer func() {
		closeErr := zlibR.Close()
		if err == nil {
			err = closeErr
		}
	}()

	objectData := bytes.Buffer{}
	_, err = io.Copy(&objectData, zlibR)
	if err != nil {
		return nil, ginternals.NullOid, 0, xerrors.Errorf("could not decompress: %w", err)
	}

	if objectData.Len() != int(objectSize) {
		return nil, ginternals.NullOid, 0, xerrors.Errorf("object size not valid, expecting %d got %d", objectSize, objectData.Len())
	}
	return object.NewWithID(oid, objectType, objectData.Bytes()), baseObjectOid, baseObjectOffset, nil
}

// getObjectAt returns the object located at the given offset, resolving
// its delta chain (if any) against its base object(s)
func (pck *Pack) getObjectAt(oid ginternals.Oid, objectOffset uint64) (*object.Object, error) {
	o, baseOid, baseOffset, err := pck.getRawObjectAt(oid, objectOffset)
	if err != nil {
		return nil, err
	}

	// If the object is not deltified, we don't have anything to do
	if o.Type() != object.ObjectDeltaRef && o.Type() != object.ObjectDeltaOFS {
		return o, nil
	}

	// we retrieve the base object
	var base *object.Object
	if baseOid != ginternals.NullOid {
		// GetObject already holds pck.mu, so the base is looked up through
		// the index directly instead of calling GetObject again
		baseOffset, err = pck.idx.GetObjectOffset(baseOid)
		if err != nil {
			return nil, xerrors.Errorf("could not get base object %s: %w", baseOid.String(), err)
		}
		base, err = pck.getObjectAt(baseOid, baseOffset)
		if err != nil {
			return nil, xerrors.Errorf("could not get base object %s: %w", baseOid.String(), err)
		}
	} else {
		// we pass NullOid because we don't know the SHA of the base
		base, err = pck.getObjectAt(ginternals.NullOid, baseOffset)
		if err != nil {
			return nil, xerrors.Errorf("could not get base object at offset %d: %w", baseOffset, err)
		}
	}

	content, err := applyDelta(o.Bytes(), base.Bytes())
	if err != nil {
		return nil, xerrors.Errorf("could not resolve delta for %s: %w", oid.String(), err)
	}
	return object.NewWithID(oid, base.Type(), content), nil
}

// GetObject returns the object that has the given fingerprint
func (pck *Pack) GetObject(oid ginternals.Oid) (*object.Object, error) {
	pck.mu.Lock()
	defer pck.mu.Unlock()

	objectOffset, err := pck.idx.GetObjectOffset(oid)
	if err != nil {
		if !errors.Is(err, ginternals.ErrObjectNotFound) {
			return nil, xerrors.Errorf("could not get object index: %w", err)
		}
		return nil, err
	}
	return pck.getObjectAt(oid, objectOffset)
}

// HasObject returns whether the packfile contains the given fingerprint
func (pck *Pack) HasObject(oid ginternals.Oid) bool {
	pck.mu.Lock()
	defer pck.mu.Unlock()

	_, err := pck.idx.GetObjectOffset(oid)
	return err == nil
}

// ObjectCount returns the number of objects in the packfile
func (pck *Pack) ObjectCount() uint32 {
	return binary.BigEndian.Uint32(pck.header[8:])
}

// ID returns the ID of the packfile
func (pck *Pack) ID() (ginternals.Oid, error) {
	pck.mu.Lock()
	defer pck.mu.Unlock()

	if pck.id != ginternals.NullOid {
		return pck.id, nil
	}

	id := make([]byte, ginternals.OidSize)
	offset, err := pck.r.Seek(-ginternals.OidSize, io.SeekEnd)
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not get the offset of the ID: %w", err)
	}
	if _, err = pck.r.ReadAt(id, offset); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not read the ID: %w", err)
	}
	pck.id, err = ginternals.NewOidFromHex(id)
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not generate oid from %v: %w", id, err)
	}
	return pck.id, nil
}

// Close frees the resources
func (pck *Pack) Close() error {
	pck.mu.Lock()
	defer pck.mu.Unlock()

	packErr := pck.r.Close()
	idxErr := pck.idxFile.Close()
	if packErr != nil {
		return packErr
	}
	return idxErr
}

// OidWalkFunc represents a function applied to each oid visited by a walk
type OidWalkFunc = func(oid ginternals.Oid) error

// OidWalkStop can be returned by a WalkOids callback to stop the walk
// early without that being treated as an error
var OidWalkStop = errors.New("stop walk")

// WalkOids calls fn once for every object id stored in the packfile's
// index, in ascending oid order. The walk stops early, without error,
// if fn returns OidWalkStop; any other error returned by fn is
// propagated to the caller.
func (pck *Pack) WalkOids(fn OidWalkFunc) error {
	pck.mu.Lock()
	defer pck.mu.Unlock()

	for i := 0; i < pck.idx.objectCount; i++ {
		oid, err := pck.idx.oidAt(i)
		if err != nil {
			return xerrors.Errorf("could not read oid at position %d: %w", i, err)
		}
		if err := fn(oid); err != nil {
			if errors.Is(err, OidWalkStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// readDeltaOffset reads the provided bytes to extract a negative offset
// to a delta's base object (used by OFS_DELTA entries). The format of
// each byte is:
//   - 1 bit (MSB) that is used to know if we need to read the next byte
//   - 7 bits that contains a chunk of offset
//
// The offset is big-endian encoded. Each chunk of offset (except the
// last one) is stored -1, so we need to add 1 back to each chunk.
func readDeltaOffset(data []byte) (offset uint64, bytesRead int, err error) {
	for _, b := range data {
		bytesRead++

		chunk := uint64(unsetMSB(b))
		if isMSBSet(b) {
			chunk++
		}
		offset = offset<<7 | chunk

		if !isMSBSet(b) {
			return offset, bytesRead, nil
		}
		if bytesRead >= 9 {
			return 0, 0, ErrIntOverflow
		}
	}
	return 0, 0, xerrors.Errorf("truncated offset encoding: %w", ErrMalformedDelta)
}
