package sniffer

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	return img
}

func TestProbe(t *testing.T) {
	var pngBuf, jpegBuf, gifBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, testImage(40, 30)))
	require.NoError(t, jpeg.Encode(&jpegBuf, testImage(20, 10), nil))
	require.NoError(t, gif.Encode(&gifBuf, testImage(8, 6), nil))

	tests := []struct {
		name   string
		data   []byte
		mime   string
		ext    string
		width  int
		height int
	}{
		{"png", pngBuf.Bytes(), "image/png", "png", 40, 30},
		{"jpeg", jpegBuf.Bytes(), "image/jpeg", "jpg", 20, 10},
		{"gif", gifBuf.Bytes(), "image/gif", "gif", 8, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Probe(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.mime, got.Mime)
			assert.Equal(t, tt.ext, got.Extension)
			assert.Equal(t, tt.width, got.Width)
			assert.Equal(t, tt.height, got.Height)
		})
	}
}

func TestProbeRejectsUnknownAndTruncated(t *testing.T) {
	_, err := Probe([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Probe(nil)
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Probe([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0})
	assert.Error(t, err)
}

func TestByExtension(t *testing.T) {
	r, ok := ByExtension(".JPEG")
	require.True(t, ok)
	assert.Equal(t, TypeJPEG, r.Type)

	r, ok = ByExtension("tiff")
	require.True(t, ok)
	assert.Equal(t, "image/tiff", r.MIME)

	_, ok = ByExtension("svg")
	assert.False(t, ok)
}

func TestMimeTypeFromHTTP(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "image/png; charset=binary")
	assert.Equal(t, "image/png", MimeTypeFromHTTP(h))
	assert.Equal(t, "", MimeTypeFromHTTP(http.Header{}))
}
