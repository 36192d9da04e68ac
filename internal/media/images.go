// Package media resizes uploaded images and stores them under the public
// directory.
package media

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

var ErrNotImage = errors.New("media: not an image")

// Size is a target box; images are cropped to fill it.
type Size struct {
	Width  int
	Height int
}

var (
	UserPhotoSize = Size{Width: 500, Height: 500}
	TourImageSize = Size{Width: 2000, Height: 1333}
)

const jpegQuality = 90

// Store writes JPEGs below <publicDir>/img.
type Store struct {
	root string
	now  func() time.Time
}

func NewStore(publicDir string) *Store {
	return &Store{root: filepath.Join(publicDir, "img"), now: time.Now}
}

// SaveUserPhoto stores a user's photo and returns its file name.
func (s *Store) SaveUserPhoto(r io.Reader, userID string) (string, error) {
	name := fmt.Sprintf("user-%s-%d.jpeg", userID, s.now().UnixMilli())
	return name, s.save(r, "users", name, UserPhotoSize)
}

// SaveTourImage stores a tour image; suffix is "cover" or the 1-based image index.
func (s *Store) SaveTourImage(r io.Reader, tourID, suffix string) (string, error) {
	name := fmt.Sprintf("tour-%s-%d-%s.jpeg", tourID, s.now().UnixMilli(), suffix)
	return name, s.save(r, "tours", name, TourImageSize)
}

func (s *Store) save(r io.Reader, dir, name string, size Size) error {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return ErrNotImage
		}
		return fmt.Errorf("media: decode: %w", err)
	}

	resized := imaging.Fill(img, size.Width, size.Height, imaging.Center, imaging.Lanczos)

	target := filepath.Join(s.root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("media: create %s: %w", target, err)
	}
	if err := imaging.Save(resized, filepath.Join(target, name), imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("media: save %s: %w", name, err)
	}
	return nil
}

// IsImage reports whether a declared content type is an image type.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
