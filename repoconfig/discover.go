// Package repoconfig resolves the on-disk layout of a repository: where
// its git directory, object directory and refs live, following the same
// gitdir-pointer-file indirection real repositories use for worktrees and
// submodules.
package repoconfig

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// ErrNotARepository is returned when a given path doesn't contain a
// recognizable repository layout (no .git directory, no gitdir pointer,
// and the path itself isn't a bare git directory).
var ErrNotARepository = errors.New("not a repository")

// Layout describes the resolved on-disk paths of a repository. Every
// path component in the rest of this module is derived from a Layout
// instead of walking the filesystem again.
type Layout struct {
	// GitDirPath is the absolute path of the directory containing
	// HEAD, refs/, objects/, etc. (what's commonly called ".git")
	GitDirPath string
	// ObjectDirPath is the absolute path of the object database
	ObjectDirPath string
	// WorkTreePath is the absolute path of the working directory this
	// git dir is attached to, empty for a bare repository
	WorkTreePath string
}

const gitDirName = ".git"

// Discover resolves the Layout for the repository reachable from
// startPath. startPath may be a working directory containing a ".git"
// directory or gitdir-pointer file, may directly be a bare git
// directory, or may directly be a gitdir-pointer file itself.
func Discover(fs afero.Fs, startPath string) (*Layout, error) {
	abs, err := filepath.Abs(startPath)
	if err != nil {
		return nil, xerrors.Errorf("could not resolve %s: %w", startPath, err)
	}

	info, err := fs.Stat(abs)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", startPath, ErrNotARepository)
	}

	// startPath points directly at a gitdir-pointer file rather than at
	// a directory: resolve it in place.
	if !info.IsDir() {
		resolved, err := resolveGitDirPointer(fs, abs)
		if err != nil {
			return nil, err
		}
		return layoutFromGitDir(resolved, filepath.Dir(abs)), nil
	}

	// A bare repository is pointed at directly: it has no working tree,
	// and its own directory contains HEAD/objects/refs.
	if isGitDir(fs, abs) && !hasDotGit(fs, abs) {
		return layoutFromGitDir(abs, ""), nil
	}

	gitDirPath := filepath.Join(abs, gitDirName)
	gInfo, err := fs.Stat(gitDirPath)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", startPath, ErrNotARepository)
	}

	if gInfo.IsDir() {
		return layoutFromGitDir(gitDirPath, abs), nil
	}

	// It's a file: a "gitdir:" pointer, used for linked worktrees and
	// submodules
	resolved, err := resolveGitDirPointer(fs, gitDirPath)
	if err != nil {
		return nil, err
	}
	return layoutFromGitDir(resolved, abs), nil
}

// isGitDir reports whether dir looks like it directly holds a git
// directory's contents (HEAD + objects), used to tell a bare repository
// apart from an arbitrary directory.
func isGitDir(fs afero.Fs, dir string) bool {
	if _, err := fs.Stat(filepath.Join(dir, "HEAD")); err != nil {
		return false
	}
	if info, err := fs.Stat(filepath.Join(dir, "objects")); err != nil || !info.IsDir() {
		return false
	}
	return true
}

func hasDotGit(fs afero.Fs, dir string) bool {
	_, err := fs.Stat(filepath.Join(dir, gitDirName))
	return err == nil
}

// resolveGitDirPointer reads a ".git" file of the form:
//
//	gitdir: <path>
//
// An absolute <path> is used as-is. A relative one is resolved against
// the directory containing the pointer file itself, which for the
// common ".git"-named pointer is also the worktree root it describes
// (see DESIGN.md for why this reader doesn't hop up an extra level for
// that case).
//
// The resolved path must exist and be a directory.
func resolveGitDirPointer(fs afero.Fs, pointerPath string) (string, error) {
	content, err := afero.ReadFile(fs, pointerPath)
	if err != nil {
		return "", xerrors.Errorf("could not read gitdir pointer %s: %w", pointerPath, err)
	}

	line := bytes.SplitN(content, []byte("\n"), 2)[0]
	line = bytes.TrimSpace(line)
	const prefix = "gitdir: "
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return "", xerrors.Errorf("%s is not a valid gitdir pointer: %w", pointerPath, ErrNotARepository)
	}
	target := strings.TrimSpace(string(line[len(prefix):]))
	if target == "" {
		return "", xerrors.Errorf("%s is not a valid gitdir pointer: %w", pointerPath, ErrNotARepository)
	}

	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(filepath.Dir(pointerPath), target)
	}
	resolved = filepath.Clean(resolved)

	info, err := fs.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", xerrors.Errorf("gitdir pointer %s resolves to %s, which is not a directory: %w", pointerPath, resolved, ErrNotARepository)
	}
	return resolved, nil
}

func layoutFromGitDir(gitDirPath, workTree string) *Layout {
	return &Layout{
		GitDirPath:    gitDirPath,
		ObjectDirPath: filepath.Join(gitDirPath, "objects"),
		WorkTreePath:  workTree,
	}
}

// IsBare returns whether the Layout describes a bare repository (no
// working tree attached)
func (l *Layout) IsBare() bool {
	return l.WorkTreePath == ""
}
