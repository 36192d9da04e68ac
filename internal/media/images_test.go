package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func fixedStore(dir string) *Store {
	s := NewStore(dir)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestStore_SaveUserPhoto(t *testing.T) {
	dir := t.TempDir()
	s := fixedStore(dir)

	name, err := s.SaveUserPhoto(pngBytes(t, 800, 600), "u1")
	require.NoError(t, err)
	assert.Equal(t, "user-u1-1700000000000.jpeg", name)

	saved, err := imaging.Open(filepath.Join(dir, "img", "users", name))
	require.NoError(t, err)
	assert.Equal(t, 500, saved.Bounds().Dx())
	assert.Equal(t, 500, saved.Bounds().Dy())
}

func TestStore_SaveTourImage(t *testing.T) {
	dir := t.TempDir()
	s := fixedStore(dir)

	name, err := s.SaveTourImage(pngBytes(t, 300, 200), "t1", "cover")
	require.NoError(t, err)
	assert.Equal(t, "tour-t1-1700000000000-cover.jpeg", name)

	saved, err := imaging.Open(filepath.Join(dir, "img", "tours", name))
	require.NoError(t, err)
	assert.Equal(t, TourImageSize.Width, saved.Bounds().Dx())
	assert.Equal(t, TourImageSize.Height, saved.Bounds().Dy())
}

func TestStore_RejectsNonImage(t *testing.T) {
	s := fixedStore(t.TempDir())
	_, err := s.SaveUserPhoto(strings.NewReader("definitely not a picture"), "u1")
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/jpeg"))
	assert.False(t, IsImage("application/pdf"))
}
