package ginternals_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/repoconfig"
)

func TestLocalTagFullName(t *testing.T) {
	t.Parallel()

	out := ginternals.LocalTagFullName("my-tag/nested")
	expect := "refs/tags/my-tag/nested"
	require.Equal(t, expect, out)
}

func TestLocalTagShortName(t *testing.T) {
	t.Parallel()

	out := ginternals.LocalTagShortName("refs/tags/my-tag/nested")
	expect := "my-tag/nested"
	require.Equal(t, expect, out)
}

func TestLocalBranchFullName(t *testing.T) {
	t.Parallel()

	out := ginternals.LocalBranchFullName("my-branch/nested")
	expect := "refs/heads/my-branch/nested"
	require.Equal(t, expect, out)
}

func TestLocalBranchShortName(t *testing.T) {
	t.Parallel()

	out := ginternals.LocalBranchShortName("refs/heads/my-branch/nested")
	expect := "my-branch/nested"
	require.Equal(t, expect, out)
}

func TestRefFullName(t *testing.T) {
	t.Parallel()

	out := ginternals.RefFullName("HEAD")
	expect := "refs/HEAD"
	require.Equal(t, expect, out)
}

func TestRefsPath(t *testing.T) {
	t.Parallel()

	l := &repoconfig.Layout{GitDirPath: "common"}

	out := ginternals.RefsPath(l)
	expect := filepath.Join("common", "refs")
	require.Equal(t, expect, out)
}

func TestPackedRefsPath(t *testing.T) {
	t.Parallel()

	l := &repoconfig.Layout{GitDirPath: "common"}

	out := ginternals.PackedRefsPath(l)
	expect := filepath.Join("common", "packed-refs")
	require.Equal(t, expect, out)
}

func TestTagsPath(t *testing.T) {
	t.Parallel()

	l := &repoconfig.Layout{GitDirPath: "common"}

	out := ginternals.TagsPath(l)
	expect := filepath.Join("common", "refs", "tags")
	require.Equal(t, expect, out)
}

func TestLocalBranchesPath(t *testing.T) {
	t.Parallel()

	l := &repoconfig.Layout{GitDirPath: "common"}

	out := ginternals.LocalBranchesPath(l)
	expect := filepath.Join("common", "refs", "heads")
	require.Equal(t, expect, out)
}

func TestObjectsPath(t *testing.T) {
	t.Parallel()

	l := &repoconfig.Layout{ObjectDirPath: "objects"}

	out := ginternals.ObjectsPath(l)
	expect := "objects"
	require.Equal(t, expect, out)
}

func TestObjectsPacksPath(t *testing.T) {
	t.Parallel()

	l := &repoconfig.Layout{ObjectDirPath: "objects"}

	out := ginternals.ObjectsPacksPath(l)
	expect := filepath.Join("objects", "pack")
	require.Equal(t, expect, out)
}

func TestPackfilePath(t *testing.T) {
	t.Parallel()

	l := &repoconfig.Layout{ObjectDirPath: "objects"}

	out := ginternals.PackfilePath(l, "my_pack.pack")
	expect := filepath.Join("objects", "pack", "my_pack.pack")
	require.Equal(t, expect, out)
}

func TestDescriptionFilePath(t *testing.T) {
	t.Parallel()

	l := &repoconfig.Layout{GitDirPath: ".git"}

	out := ginternals.DescriptionFilePath(l)
	expect := filepath.Join(".git", "description")
	require.Equal(t, expect, out)
}

func TestLooseObjectPath(t *testing.T) {
	t.Parallel()

	l := &repoconfig.Layout{ObjectDirPath: "objects"}

	out := ginternals.LooseObjectPath(l, "fcfe68a0e44e04bd7fd564fc0b75f1ae457e18b3")
	expect := filepath.Join("objects", "fc", "fe68a0e44e04bd7fd564fc0b75f1ae457e18b3")
	require.Equal(t, expect, out)
}
