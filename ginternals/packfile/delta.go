package packfile

import (
	"bytes"
	"encoding/binary"
	"errors"

	"golang.org/x/xerrors"
)

// ErrMalformedDelta is returned when a delta's instruction stream
// references bytes outside the bounds of its base or insert data, or
// produces an object whose size doesn't match the size advertised in
// the delta header.
var ErrMalformedDelta = errors.New("malformed delta")

// applyDelta reconstructs an object's content by replaying a delta's
// COPY/INSERT instructions against the content of its base object.
//
// The format of a delta is:
//   - a header with the size of the source (base) object and the size
//     of the target (resulting) object, both variable-length encoded
//   - a stream of COPY/INSERT instructions
//
// A COPY instruction copies a range of bytes from the base object's
// content. An INSERT instruction appends literal bytes carried inline
// in the delta. https://git-scm.com/docs/pack-format#_deltified_representation
func applyDelta(delta []byte, base []byte) ([]byte, error) {
	sourceSize, sourceSizeLen, err := readSize(delta)
	if err != nil {
		return nil, xerrors.Errorf("couldn't read source size of delta: %w", err)
	}
	if int(sourceSize) != len(base) {
		return nil, xerrors.Errorf("invalid base object size, expected %d got %d: %w", sourceSize, len(base), ErrMalformedDelta)
	}
	targetSize, targetSizeLen, err := readSize(delta[sourceSizeLen:])
	if err != nil {
		return nil, xerrors.Errorf("couldn't read target size of delta: %w", err)
	}

	headerSize := sourceSizeLen + targetSizeLen
	if headerSize > len(delta) {
		return nil, xerrors.Errorf("delta header longer than the delta itself: %w", ErrMalformedDelta)
	}
	instructions := delta[headerSize:]

	var out bytes.Buffer
	out.Grow(int(targetSize))

	for i := 0; i < len(instructions); i++ {
		instr := instructions[i]

		if isMSBSet(instr) { // COPY
			offsetInfo := uint(instr & 0b_0000_1111)
			offsetBytes := make([]byte, 4)
			read := 0
			for j := uint(0); j < 4; j++ {
				if (offsetInfo>>j)&1 == 1 {
					if i+1+read >= len(instructions) {
						return nil, xerrors.Errorf("copy offset truncated: %w", ErrMalformedDelta)
					}
					offsetBytes[j] = instructions[i+1+read]
					read++
				}
			}
			offset := binary.LittleEndian.Uint32(offsetBytes)
			i += read

			copyLenInfo := uint((instr & 0b_0111_0000) >> 4)
			copyLenBytes := make([]byte, 4)
			read = 0
			for j := uint(0); j < 3; j++ {
				if (copyLenInfo>>j)&1 == 1 {
					if i+1+read >= len(instructions) {
						return nil, xerrors.Errorf("copy length truncated: %w", ErrMalformedDelta)
					}
					copyLenBytes[j] = instructions[i+1+read]
					read++
				}
			}
			copyLen := binary.LittleEndian.Uint32(copyLenBytes)
			// A copy length of 0 is special-cased by git to mean 0x10000
			if copyLen == 0 {
				copyLen = 0x10000
			}
			i += read

			end := uint64(offset) + uint64(copyLen)
			if end > uint64(len(base)) {
				return nil, xerrors.Errorf("copy instruction reads past the base object (offset=%d len=%d base=%d): %w", offset, copyLen, len(base), ErrMalformedDelta)
			}
			out.Write(base[offset:end])
			continue
		}

		// INSERT: $instr is the number of literal bytes following it.
		// Opcode 0 (MSB clear, value 0) is reserved and never appears in
		// a well-formed delta stream.
		if instr == 0 {
			return nil, xerrors.Errorf("opcode 0 is reserved: %w", ErrMalformedDelta)
		}
		insertLen := int(instr)
		start := i + 1
		end := start + insertLen
		if end > len(instructions) {
			return nil, xerrors.Errorf("insert instruction reads past the delta stream: %w", ErrMalformedDelta)
		}
		out.Write(instructions[start:end])
		i += insertLen
	}

	if out.Len() != int(targetSize) {
		return nil, xerrors.Errorf("delta result size mismatch, expected %d got %d: %w", targetSize, out.Len(), ErrMalformedDelta)
	}
	return out.Bytes(), nil
}

// readSize reads a variable-length size encoding (used for both the
// source/target sizes in a delta header and the object size in a pack
// entry header). Each byte contributes its low 7 bits, little-endian
// ordered, and its MSB signals whether another byte follows.
func readSize(data []byte) (size uint64, bytesRead int, err error) {
	for i, b := range data {
		bytesRead++
		chunk := unsetMSB(b)
		size |= uint64(chunk) << (uint(i) * 7)
		if !isMSBSet(b) {
			return size, bytesRead, nil
		}
		if bytesRead >= 10 {
			return 0, 0, ErrIntOverflow
		}
	}
	return 0, 0, xerrors.Errorf("truncated size encoding: %w", ErrMalformedDelta)
}

func isMSBSet(b byte) bool {
	return b&0b_1000_0000 != 0
}

func unsetMSB(b byte) byte {
	return b & 0b_0111_1111
}
