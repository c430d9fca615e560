package window

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileSink stores each window as a JSON file named "<first>-<last>.json"
// under its directory. Writes are atomic: a flushed window is either fully
// present or absent, never partial.
type FileSink struct {
	dir string
}

// NewFileSink creates the sink's directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating window directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Store writes the window payload to <dir>/<name>.json atomically.
func (s *FileSink) Store(name string, payload []byte) error {
	return writeFileAtomic(filepath.Join(s.dir, name+".json"), payload)
}

// writeFileAtomic writes b to a temp file in the target directory, syncs it,
// and renames it over path.
func writeFileAtomic(path string, b []byte) error {
	tmp := fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	if _, err := f.Write(b); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
