package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Kame-terry/line-bot/internal/domain"
)

// maxMediaBytes caps a single downloaded payload.
const maxMediaBytes = 50 << 20

// ErrMediaTooLarge is returned when a payload exceeds maxMediaBytes.
var ErrMediaTooLarge = errors.New("media payload too large")

// ScopedFile is a media payload materialized to a temp file. Its lifetime is
// one event: the caller defers Remove right after Materialize succeeds.
type ScopedFile struct {
	Path     string
	Size     int64
	MimeType string

	once sync.Once
	err  error
}

// Materialize opens ref through src exactly once and writes the payload to a
// temp file in dir ("" means os.TempDir) named with the ref's container
// suffix. On error nothing is left on disk.
func Materialize(ctx context.Context, src domain.MediaSource, ref domain.MediaRef, dir string) (*ScopedFile, error) {
	rc, err := src.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open media %s: %w", ref.ID, err)
	}
	defer rc.Close()

	f, err := os.CreateTemp(dir, "media-*"+ref.Suffix())
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(rc, maxMediaBytes+1))
	closeErr := f.Close()
	if copyErr == nil && n > maxMediaBytes {
		copyErr = ErrMediaTooLarge
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("write media %s: %w", ref.ID, copyErr)
	}

	return &ScopedFile{Path: f.Name(), Size: n, MimeType: ref.MimeType()}, nil
}

// Name is the base file name, used as the upload/transcription filename.
func (f *ScopedFile) Name() string {
	return filepath.Base(f.Path)
}

// Open opens the file for reading.
func (f *ScopedFile) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// ReadAll returns the whole payload.
func (f *ScopedFile) ReadAll() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Remove deletes the file. Safe to call more than once and on nil.
func (f *ScopedFile) Remove() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.err = err
		}
	})
	return f.err
}
