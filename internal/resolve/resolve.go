package resolve

import (
	"io/fs"
	"os"

	"github.com/DeusData/depclosure/internal/lang"
)

// FS is the file system the resolver reads from. Stat must follow symlinks.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
}

// OSFS reads from the host file system.
type OSFS struct{}

// Stat implements FS.
func (OSFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

// ReadFile implements FS.
func (OSFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

// IsRegular reports whether path exists and is a regular file.
// Directories, sockets and broken symlinks are rejected.
func IsRegular(fsys FS, path string) bool {
	info, err := fsys.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Resolve maps a candidate path onto an existing regular file.
//
// The candidate itself is tried first, then each step in order. The second
// return value is false when nothing matched; that means "not on disk" and is
// not an error.
func Resolve(fsys FS, candidate string, steps []lang.ResolverStep) (string, bool) {
	if IsRegular(fsys, candidate) {
		return candidate, true
	}
	for _, step := range steps {
		if p := step(candidate); IsRegular(fsys, p) {
			return p, true
		}
	}
	return "", false
}
