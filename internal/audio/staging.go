package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// ErrIO is returned when temporary storage cannot be written or read.
var ErrIO = errors.New("audio: temporary storage failure")

// StagedFile is an exclusively owned temporary file. Release must be called
// on every exit path; calling it more than once is safe.
type StagedFile struct {
	path string
	once sync.Once
	err  error
}

// Stage writes data verbatim to a new temporary file in dir (os.TempDir when
// empty). suffix is the container hint, e.g. ".webm".
func Stage(dir string, data []byte, suffix string) (*StagedFile, error) {
	f, err := os.CreateTemp(dir, "samanta-*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", ErrIO, err)
	}
	sf := &StagedFile{path: f.Name()}

	if _, err := f.Write(data); err != nil {
		f.Close()
		sf.Release()
		return nil, fmt.Errorf("%w: write temp file: %v", ErrIO, err)
	}
	// Force the bytes to disk before an external process opens the file.
	if err := f.Sync(); err != nil {
		f.Close()
		sf.Release()
		return nil, fmt.Errorf("%w: sync temp file: %v", ErrIO, err)
	}
	if err := f.Close(); err != nil {
		sf.Release()
		return nil, fmt.Errorf("%w: close temp file: %v", ErrIO, err)
	}
	return sf, nil
}

// Reserve creates an empty temporary file that an external process will
// overwrite. It carries the same release discipline as Stage.
func Reserve(dir, suffix string) (*StagedFile, error) {
	f, err := os.CreateTemp(dir, "samanta-*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", ErrIO, err)
	}
	sf := &StagedFile{path: f.Name()}
	if err := f.Close(); err != nil {
		sf.Release()
		return nil, fmt.Errorf("%w: close temp file: %v", ErrIO, err)
	}
	return sf, nil
}

// Path returns the filesystem path of the staged file.
func (f *StagedFile) Path() string {
	return f.path
}

// Size returns the current size of the staged file in bytes.
func (f *StagedFile) Size() (int64, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Release removes the file. A file that is already gone is not an error, and
// only the first call touches the filesystem.
func (f *StagedFile) Release() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.err = fmt.Errorf("%w: remove temp file: %v", ErrIO, err)
		}
	})
	return f.err
}
