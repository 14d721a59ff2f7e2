package filestore

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
)

const ImagesDir = "known_faces"

// ImageStore saves reference crops as `{name}_{unix}.jpg` under one directory.
// References are file names relative to that directory.
type ImageStore struct {
	dir string
	now func() time.Time
}

func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}
	return &ImageStore{dir: dir, now: time.Now}, nil
}

func (s *ImageStore) Save(_ context.Context, name string, img image.Image) (string, error) {
	ref := fmt.Sprintf("%s_%d.jpg", safeName(name), s.now().Unix())

	tmp, err := os.CreateTemp(s.dir, ".ref-*.jpg")
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := imaging.EncodeJPEG(tmp, img); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(ref)); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return ref, nil
}

func (s *ImageStore) Load(_ context.Context, ref string) (image.Image, error) {
	f, err := os.Open(s.path(ref))
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	defer f.Close()

	return imaging.Decode(f)
}

// Delete removes ref. A missing file is not an error.
func (s *ImageStore) Delete(_ context.Context, ref string) error {
	err := os.Remove(s.path(ref))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// path keeps refs inside the store directory. Legacy refs carrying a
// directory prefix resolve to the same file name here.
func (s *ImageStore) path(ref string) string {
	return filepath.Join(s.dir, filepath.Base(filepath.Clean("/"+ref)))
}

// safeName maps a display name to a file name fragment.
func safeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "face"
	}
	return out
}
