package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/ginternals/object"
)

func TestTreeRoundTrip(t *testing.T) {
	t.Parallel()

	blobID, err := ginternals.NewOidFromStr("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	require.NoError(t, err)

	tr := object.NewTree([]object.TreeEntry{
		{Path: "README.md", Mode: object.ModeFile, ID: blobID},
	})

	decoded, err := object.NewTreeFromObject(tr.ToObject())
	require.NoError(t, err)
	entries := decoded.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "README.md", entries[0].Path)
	assert.Equal(t, object.ModeFile, entries[0].Mode)
	assert.Equal(t, blobID, entries[0].ID)
}

func TestTreeEmpty(t *testing.T) {
	t.Parallel()

	tr := object.NewTree(nil)
	decoded, err := object.NewTreeFromObject(tr.ToObject())
	require.NoError(t, err)
	assert.Empty(t, decoded.Entries())
}

func TestTreeFromObjectWrongType(t *testing.T) {
	t.Parallel()

	o := object.New(object.TypeBlob, []byte("not a tree"))
	_, err := object.NewTreeFromObject(o)
	assert.ErrorIs(t, err, object.ErrObjectInvalid)
}

func TestTreeFromObjectTruncated(t *testing.T) {
	t.Parallel()

	o := object.New(object.TypeTree, []byte("100644 README.md\x00short"))
	_, err := object.NewTreeFromObject(o)
	assert.ErrorIs(t, err, object.ErrTreeInvalid)
}

func TestTreeObjectModeObjectType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, object.TypeTree, object.ModeDirectory.ObjectType())
	assert.Equal(t, object.TypeCommit, object.ModeGitLink.ObjectType())
	assert.Equal(t, object.TypeBlob, object.ModeFile.ObjectType())
	assert.True(t, object.ModeExecutable.IsValid())
	assert.False(t, object.TreeObjectMode(0).IsValid())
}
