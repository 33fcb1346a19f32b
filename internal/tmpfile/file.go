// Package tmpfile provides a temp file that removes itself on Close, used
// for spooling downloads and extraction staging before an atomic rename.
package tmpfile

import "os"

// File wraps an *os.File and removes it from the filesystem on Close.
type File struct {
	*os.File
}

// New creates a temp file in dir matching pattern (see [os.CreateTemp]).
func New(dir, pattern string) (*File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &File{f}, nil
}

// Close closes the file handle and removes the file from the filesystem.
func (t *File) Close() error {
	if err := t.File.Close(); err != nil {
		return err
	}
	return os.Remove(t.File.Name())
}
