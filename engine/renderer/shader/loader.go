package shader

import (
	"os"
	"path/filepath"
)

// SourceLoader resolves shader file names to their contents. A packr box satisfies it.
type SourceLoader interface {
	Find(name string) ([]byte, error)
}

// DirLoader reads shader files relative to a directory on the OS filesystem.
type DirLoader string

var _ SourceLoader = DirLoader("")

// Find reads name relative to the loader directory. Absolute names are read as-is.
//
// Parameters:
//   - name: the shader file name
//
// Returns:
//   - []byte: the file contents
//   - error: the read error, if any
func (d DirLoader) Find(name string) ([]byte, error) {
	if filepath.IsAbs(name) || d == "" {
		return os.ReadFile(name)
	}
	return os.ReadFile(filepath.Join(string(d), name))
}
