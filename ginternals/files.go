package ginternals

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/solstice-oss/gitodb/repoconfig"
)

// .git/ paths and directories.
// We keep the refs paths in unix format since they must be stored
// this way on disk, regardless of host OS.
const (
	refsDirName      = "refs"
	refsTagsRelPath  = refsDirName + "/tags"
	refsHeadsRelPath = refsDirName + "/heads"
)

// LocalTagFullName returns the full name of a tag
// ex. for `my-tag` returns `refs/tags/my-tag`
func LocalTagFullName(shortName string) string {
	return path.Join(refsTagsRelPath, shortName)
}

// LocalTagShortName returns the short name of a tag
// ex. for refs/tags/my-tag returns my-tag
func LocalTagShortName(fullName string) string {
	return strings.TrimPrefix(fullName, refsTagsRelPath+"/")
}

// LocalBranchFullName returns the full name of a branch
// ex. for `main` returns `refs/heads/main`
func LocalBranchFullName(shortName string) string {
	return path.Join(refsHeadsRelPath, shortName)
}

// LocalBranchShortName returns the short name of a branch
// ex. for `refs/heads/main` returns `main`
func LocalBranchShortName(fullName string) string {
	return strings.TrimPrefix(fullName, refsHeadsRelPath+"/")
}

// RefFullName returns the UNIX path of a ref, given its name relative
// to refs/
func RefFullName(shortName string) string {
	return path.Join(refsDirName, shortName)
}

// RefsPath returns the path to the directory that contains all the refs
func RefsPath(l *repoconfig.Layout) string {
	return filepath.Join(l.GitDirPath, refsDirName)
}

// PackedRefsPath returns the path of the packed-refs file
func PackedRefsPath(l *repoconfig.Layout) string {
	return filepath.Join(l.GitDirPath, "packed-refs")
}

// TagsPath returns the path to the directory that contains the tags
func TagsPath(l *repoconfig.Layout) string {
	return filepath.Join(RefsPath(l), "tags")
}

// LocalBranchesPath returns the path to the directory containing the
// local branches
func LocalBranchesPath(l *repoconfig.Layout) string {
	return filepath.Join(RefsPath(l), "heads")
}

// ObjectsPath returns the path to the directory that contains the
// object database
func ObjectsPath(l *repoconfig.Layout) string {
	return l.ObjectDirPath
}

// ObjectsPacksPath returns the path to the directory that contains
// the packfiles
func ObjectsPacksPath(l *repoconfig.Layout) string {
	return filepath.Join(l.ObjectDirPath, "pack")
}

// PackfilePath returns the path of a file (.pack or .idx) stored in the
// packfile directory
func PackfilePath(l *repoconfig.Layout, fileName string) string {
	return filepath.Join(ObjectsPacksPath(l), fileName)
}

// DescriptionFilePath returns the path to the description file
func DescriptionFilePath(l *repoconfig.Layout) string {
	return filepath.Join(l.GitDirPath, "description")
}

// LooseObjectPath returns the path of a loose object.
// Path is .git/objects/first_2_chars_of_sha/remaining_chars_of_sha
//
// Ex. path of fcfe68a0e44e04bd7fd564fc0b75f1ae457e18b3 is:
// .git/objects/fc/fe68a0e44e04bd7fd564fc0b75f1ae457e18b3
func LooseObjectPath(l *repoconfig.Layout, sha string) string {
	return filepath.Join(ObjectsPath(l), sha[:2], sha[2:])
}
