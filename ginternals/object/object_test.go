package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-oss/gitodb/ginternals/object"
)

func TestNewTypeFromString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want object.Type
	}{
		{"commit", object.TypeCommit},
		{"tree", object.TypeTree},
		{"blob", object.TypeBlob},
		{"tag", object.TypeTag},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := object.NewTypeFromString(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := object.NewTypeFromString("bogus")
	assert.ErrorIs(t, err, object.ErrObjectUnknown)
}

func TestObjectRoundTrip(t *testing.T) {
	t.Parallel()

	o := object.New(object.TypeBlob, []byte("hello world"))
	assert.Equal(t, 11, o.Size())
	assert.Equal(t, object.TypeBlob, o.Type())
	assert.Equal(t, []byte("hello world"), o.Bytes())

	// the fingerprint must be the SHA1 of "blob 11\0hello world"
	assert.Equal(t, "95d09f2b10159347eece71399a7e2e907ea3df4f", o.ID().String())
}

func TestObjectCompress(t *testing.T) {
	t.Parallel()

	o := object.New(object.TypeBlob, []byte("hello world"))
	data, err := o.Compress()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestTypeStringPanicsOnUnknown(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		_ = object.Type(42).String()
	})
}

func TestTypeIsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, object.TypeCommit.IsValid())
	assert.True(t, object.ObjectDeltaOFS.IsValid())
	assert.False(t, object.Type(5).IsValid())
}
