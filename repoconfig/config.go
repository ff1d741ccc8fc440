package repoconfig

import (
	"errors"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

// supportedFormatVersion is the highest core.repositoryformatversion
// this reader knows how to deal with.
const supportedFormatVersion = 1

// ErrUnsupportedVersion is returned when a repository's
// core.repositoryformatversion is newer than this reader understands.
var ErrUnsupportedVersion = errors.New("unsupported repository format version")

// CoreVersion reads core.repositoryformatversion out of the repository's
// config file. A repository with no config file, or no [core] section,
// is treated as version 0 (git's own default).
func CoreVersion(fs afero.Fs, layout *Layout) (int, error) {
	path := filepath.Join(layout.GitDirPath, "config")
	if _, err := fs.Stat(path); err != nil {
		return 0, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, err
	}

	cfg, err := ini.Load(data)
	if err != nil {
		return 0, err
	}
	return cfg.Section("core").Key("repositoryformatversion").MustInt(0), nil
}

// CheckSupported returns ErrUnsupportedVersion if the
// repository's format version is newer than this reader understands.
func CheckSupported(fs afero.Fs, layout *Layout) error {
	v, err := CoreVersion(fs, layout)
	if err != nil {
		return err
	}
	if v > supportedFormatVersion {
		return ErrUnsupportedVersion
	}
	return nil
}
