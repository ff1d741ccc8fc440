package object_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-oss/gitodb/ginternals/object"
)

func TestTagRoundTrip(t *testing.T) {
	t.Parallel()

	target := object.New(object.TypeCommit, []byte("tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\nauthor a <a@b.c> 1 +0000\ncommitter a <a@b.c> 1 +0000\n\nmsg"))
	tagger := object.Signature{Name: "Jane", Email: "jane@example.com", Time: time.Unix(1600000000, 0).UTC()}

	tag := object.NewTag(&object.TagParams{
		Target:  target,
		Name:    "v1.0.0",
		Tagger:  tagger,
		Message: "release\n",
	})

	decoded, err := object.NewTagFromObject(tag.ToObject())
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", decoded.Name())
	assert.Equal(t, target.ID(), decoded.Target())
	assert.Equal(t, object.TypeCommit, decoded.Type())
	assert.Equal(t, "release\n", decoded.Message())
}

func TestTagSummaryAndDetail(t *testing.T) {
	t.Parallel()

	target := object.New(object.TypeCommit, []byte("tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\nauthor a <a@b.c> 1 +0000\ncommitter a <a@b.c> 1 +0000\n\nmsg"))
	tagger := object.Signature{Name: "Jane", Email: "jane@example.com", Time: time.Unix(1600000000, 0).UTC()}

	tag := object.NewTag(&object.TagParams{
		Target:  target,
		Name:    "v1.0.0",
		Tagger:  tagger,
		Message: "v1.0.0 release\n\nSee CHANGELOG for details.\n",
	})

	decoded, err := object.NewTagFromObject(tag.ToObject())
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0 release", decoded.Summary())
	assert.Equal(t, "See CHANGELOG for details.\n", decoded.Detail())
}

func TestTagFromObjectWrongType(t *testing.T) {
	t.Parallel()

	o := object.New(object.TypeBlob, []byte("not a tag"))
	_, err := object.NewTagFromObject(o)
	assert.ErrorIs(t, err, object.ErrObjectInvalid)
}

func TestTagFromObjectMissingTagger(t *testing.T) {
	t.Parallel()

	o := object.New(object.TypeTag, []byte("object 4b825dc642cb6eb9a060e54bf8d69288fbee4904\ntype commit\ntag v1\n\nmsg"))
	_, err := object.NewTagFromObject(o)
	assert.ErrorIs(t, err, object.ErrTagInvalid)
}
