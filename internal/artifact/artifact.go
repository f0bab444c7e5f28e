// Package artifact implements the streaming msgpack artefact files the
// supervisors in this repo write. Each artefact type reuses a single
// encoder across every record it writes rather than building the whole
// payload in memory first.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Named is implemented by every artefact type; Name is used to build the
// on-disk file name.
type Named interface {
	Name() string
}

// FileName returns the "{pid}.{Name}.msgpack" convention used for
// PID-scoped artefacts (both supervisors pass the root PID), or
// "{Name}.msgpack" when pid is nil.
func FileName(a Named, pid *int32) string {
	if pid == nil {
		return fmt.Sprintf("%s.msgpack", a.Name())
	}
	return fmt.Sprintf("%d.%s.msgpack", *pid, a.Name())
}

// OpenFile creates dir (and parents) if needed and opens FileName(a, pid)
// for writing inside it, truncating any existing file of the same name.
func OpenFile(dir string, a Named, pid *int32) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(a, pid))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: create %s: %w", path, err)
	}
	return f, nil
}
