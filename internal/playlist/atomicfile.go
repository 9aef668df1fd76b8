package playlist

import (
	"fmt"
	"os"
)

// writeFileAtomically writes content to path without ever leaving a reader
// able to observe a partial file: it writes to path+".tmp", fsyncs it, and
// renames it over path. A failure at any step leaves the previous file (if
// any) untouched and removes the temporary file.
func writeFileAtomically(path string, content []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("playlist: create temp file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("playlist: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("playlist: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("playlist: close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("playlist: rename into place: %w", err)
	}
	return nil
}
