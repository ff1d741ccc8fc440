package repoconfig_test

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-oss/gitodb/repoconfig"
)

func TestDiscoverBareRepository(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/bare.git/objects", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/bare.git/HEAD", []byte("ref: refs/heads/master\n"), 0o644))

	layout, err := repoconfig.Discover(fs, "/bare.git")
	require.NoError(t, err)
	assert.Equal(t, "/bare.git", layout.GitDirPath)
	assert.Equal(t, "/bare.git/objects", layout.ObjectDirPath)
	assert.Empty(t, layout.WorkTreePath)
	assert.True(t, layout.IsBare())
}

func TestDiscoverDotGitDirectory(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/repo/.git/objects", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/repo/.git/HEAD", []byte("ref: refs/heads/master\n"), 0o644))

	layout, err := repoconfig.Discover(fs, "/repo")
	require.NoError(t, err)
	assert.Equal(t, "/repo/.git", layout.GitDirPath)
	assert.Equal(t, "/repo/.git/objects", layout.ObjectDirPath)
	assert.Equal(t, "/repo", layout.WorkTreePath)
	assert.False(t, layout.IsBare())
}

func TestDiscoverDotGitPointerFileAsDirectoryMember(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/main/.git/objects", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/main/.git/HEAD", []byte("ref: refs/heads/master\n"), 0o644))

	// A submodule-style checkout: /sub/.git is a file pointing at a
	// gitdir living elsewhere, with a relative target.
	require.NoError(t, fs.MkdirAll("/sub", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/sub/.git", []byte("gitdir: ../main/.git\n"), 0o644))

	layout, err := repoconfig.Discover(fs, "/sub")
	require.NoError(t, err)
	assert.Equal(t, "/main/.git", layout.GitDirPath)
	assert.Equal(t, "/main/.git/objects", layout.ObjectDirPath)
	assert.Equal(t, "/sub", layout.WorkTreePath)
	assert.False(t, layout.IsBare())
}

func TestDiscoverDotGitPointerFileAsDirectInput(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/main/.git/objects", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/main/.git/HEAD", []byte("ref: refs/heads/master\n"), 0o644))

	require.NoError(t, fs.MkdirAll("/sub", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/sub/.git", []byte("gitdir: ../main/.git\n"), 0o644))

	// Discover is handed the pointer file itself, not the directory
	// containing it.
	layout, err := repoconfig.Discover(fs, "/sub/.git")
	require.NoError(t, err)
	assert.Equal(t, "/main/.git", layout.GitDirPath)
	assert.Equal(t, "/sub", layout.WorkTreePath)
	assert.False(t, layout.IsBare())
}

func TestDiscoverDotGitPointerFileWithAbsoluteTarget(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/main/.git/objects", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/main/.git/HEAD", []byte("ref: refs/heads/master\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/sub/.git", []byte("gitdir: /main/.git\n"), 0o644))

	layout, err := repoconfig.Discover(fs, "/sub/.git")
	require.NoError(t, err)
	assert.Equal(t, "/main/.git", layout.GitDirPath)
}

func TestDiscoverNotARepository(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/empty", 0o755))

	_, err := repoconfig.Discover(fs, "/empty")
	require.Error(t, err)
	assert.ErrorIs(t, err, repoconfig.ErrNotARepository)
}

func TestDiscoverMalformedPointerFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/repo", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/repo/.git", []byte("not a gitdir pointer\n"), 0o644))

	_, err := repoconfig.Discover(fs, "/repo")
	require.Error(t, err)
	assert.ErrorIs(t, err, repoconfig.ErrNotARepository)
}

func TestDiscoverPointerResolvesOutsideOfAnyDirectory(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/repo", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/repo/.git", []byte("gitdir: ../does-not-exist\n"), 0o644))

	_, err := repoconfig.Discover(fs, "/repo")
	require.Error(t, err)
	assert.ErrorIs(t, err, repoconfig.ErrNotARepository)
}

func TestCheckSupportedAndCoreVersion(t *testing.T) {
	t.Parallel()

	t.Run("no config file defaults to version 0", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/repo/.git/objects", 0o755))
		layout, err := repoconfig.Discover(fs, "/repo")
		require.NoError(t, err)

		v, err := repoconfig.CoreVersion(fs, layout)
		require.NoError(t, err)
		assert.Equal(t, 0, v)
		assert.NoError(t, repoconfig.CheckSupported(fs, layout))
	})

	t.Run("supported version passes", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/repo/.git/objects", 0o755))
		require.NoError(t, afero.WriteFile(fs, "/repo/.git/config", []byte("[core]\n\trepositoryformatversion = 1\n"), 0o644))
		layout, err := repoconfig.Discover(fs, "/repo")
		require.NoError(t, err)

		v, err := repoconfig.CoreVersion(fs, layout)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		assert.NoError(t, repoconfig.CheckSupported(fs, layout))
	})

	t.Run("unsupported version is rejected", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/repo/.git/objects", 0o755))
		require.NoError(t, afero.WriteFile(fs, "/repo/.git/config", []byte("[core]\n\trepositoryformatversion = 2\n"), 0o644))
		layout, err := repoconfig.Discover(fs, "/repo")
		require.NoError(t, err)

		v, err := repoconfig.CoreVersion(fs, layout)
		require.NoError(t, err)
		assert.Equal(t, 2, v)

		err = repoconfig.CheckSupported(fs, layout)
		require.Error(t, err)
		assert.ErrorIs(t, err, repoconfig.ErrUnsupportedVersion)
	})
}
