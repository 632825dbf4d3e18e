package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Kame-terry/line-bot/internal/domain"
)

type fakeMedia struct {
	data  []byte
	err   error
	opens int
}

func (f *fakeMedia) Open(ctx context.Context, ref domain.MediaRef) (io.ReadCloser, error) {
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, errors.New("connection reset") }

type brokenMedia struct{}

func (brokenMedia) Open(ctx context.Context, ref domain.MediaRef) (io.ReadCloser, error) {
	return io.NopCloser(failingReader{}), nil
}

func TestMaterialize_WritesSuffixedFile(t *testing.T) {
	dir := t.TempDir()
	src := &fakeMedia{data: []byte("voice-bytes")}

	f, err := Materialize(context.Background(), src, domain.MediaRef{ID: "m1", Kind: domain.KindAudio}, dir)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer f.Remove()

	if !strings.HasSuffix(f.Path, ".m4a") {
		t.Fatalf("expected .m4a suffix, got %s", f.Path)
	}
	if filepath.Dir(f.Path) != dir {
		t.Fatalf("expected file in %s, got %s", dir, f.Path)
	}
	if f.Size != int64(len("voice-bytes")) {
		t.Fatalf("expected size %d, got %d", len("voice-bytes"), f.Size)
	}
	data, err := f.ReadAll()
	if err != nil || string(data) != "voice-bytes" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}
	if src.opens != 1 {
		t.Fatalf("expected one fetch, got %d", src.opens)
	}
}

func TestMaterialize_ImageSuffix(t *testing.T) {
	f, err := Materialize(context.Background(), &fakeMedia{data: []byte{0xff}}, domain.MediaRef{ID: "i1", Kind: domain.KindImage}, t.TempDir())
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer f.Remove()
	if !strings.HasSuffix(f.Name(), ".jpg") {
		t.Fatalf("expected .jpg suffix, got %s", f.Name())
	}
	if f.MimeType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", f.MimeType)
	}
}

func TestScopedFile_RemoveIdempotent(t *testing.T) {
	f, err := Materialize(context.Background(), &fakeMedia{data: []byte("x")}, domain.MediaRef{ID: "m", Kind: domain.KindAudio}, t.TempDir())
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if err := f.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(f.Path); !os.IsNotExist(err) {
		t.Fatal("expected file removed")
	}
	if err := f.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}

	var nilFile *ScopedFile
	if err := nilFile.Remove(); err != nil {
		t.Fatalf("nil Remove: %v", err)
	}
}

func TestMaterialize_OpenError(t *testing.T) {
	dir := t.TempDir()
	_, err := Materialize(context.Background(), &fakeMedia{err: errors.New("404")}, domain.MediaRef{ID: "m", Kind: domain.KindAudio}, dir)
	if err == nil {
		t.Fatal("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files left, got %d", len(entries))
	}
}

func TestMaterialize_CopyErrorLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := Materialize(context.Background(), brokenMedia{}, domain.MediaRef{ID: "m", Kind: domain.KindImage}, dir)
	if err == nil {
		t.Fatal("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected temp file cleaned up, found %d entries", len(entries))
	}
}
