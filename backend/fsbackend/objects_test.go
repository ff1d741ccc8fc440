package fsbackend_test

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-oss/gitodb/backend/fsbackend"
	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/ginternals/object"
	"github.com/solstice-oss/gitodb/ginternals/packfile"
)

func compressRaw(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestObjectLoose(t *testing.T) {
	t.Parallel()

	fs, layout := newRepo(t)
	oid := writeLooseObject(t, fs, layout, object.TypeBlob, []byte("hello world"))

	b, err := fsbackend.New(fs, layout)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	o, err := b.Object(oid)
	require.NoError(t, err)
	assert.Equal(t, oid, o.ID())
	assert.Equal(t, object.TypeBlob, o.Type())
	assert.Equal(t, []byte("hello world"), o.Bytes())
}

func TestObjectNotFound(t *testing.T) {
	t.Parallel()

	fs, layout := newRepo(t)
	b, err := fsbackend.New(fs, layout)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	oid, err := ginternals.NewOidFromStr("0000000000000000000000000000000000000001")
	require.NoError(t, err)

	_, err = b.Object(oid)
	require.ErrorIs(t, err, ginternals.ErrObjectNotFound)

	has, err := b.HasObject(oid)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestObjectCorruptLooseObjectIsRejected(t *testing.T) {
	t.Parallel()

	fs, layout := newRepo(t)
	oid := writeLooseObject(t, fs, layout, object.TypeBlob, []byte("hello world"))

	// Overwrite the file, at the same path, with a header that
	// declares a length longer than the content that actually follows.
	p := ginternals.LooseObjectPath(layout, oid.String())
	data := compressRaw(t, []byte("blob 99\x00hello"))
	require.NoError(t, afero.WriteFile(fs, p, data, 0o444))

	// Re-open so the backend re-indexes the (now mismatched) file under
	// the original oid.
	b, err := fsbackend.New(fs, layout)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	_, err = b.Object(oid)
	require.ErrorIs(t, err, ginternals.ErrCorruptObject)
}

func TestWalkLooseObjectIDs(t *testing.T) {
	t.Parallel()

	fs, layout := newRepo(t)
	oid1 := writeLooseObject(t, fs, layout, object.TypeBlob, []byte("one"))
	oid2 := writeLooseObject(t, fs, layout, object.TypeBlob, []byte("two"))

	b, err := fsbackend.New(fs, layout)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	seen := map[ginternals.Oid]bool{}
	err = b.WalkLooseObjectIDs(func(oid ginternals.Oid) error {
		seen[oid] = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, seen[oid1])
	assert.True(t, seen[oid2])
}

func TestWalkLooseObjectIDsStopsOnSentinel(t *testing.T) {
	t.Parallel()

	fs, layout := newRepo(t)
	writeLooseObject(t, fs, layout, object.TypeBlob, []byte("one"))
	writeLooseObject(t, fs, layout, object.TypeBlob, []byte("two"))

	b, err := fsbackend.New(fs, layout)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	count := 0
	err = b.WalkLooseObjectIDs(func(oid ginternals.Oid) error {
		count++
		return packfile.OidWalkStop
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoadPacksIgnoresMissingPackDir(t *testing.T) {
	t.Parallel()

	fs, layout := newRepo(t)
	// objects/pack is intentionally never created
	b, err := fsbackend.New(fs, layout)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })
}
