package sniffer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"mediavault/internal/models"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeBMP  MediaType = "bmp"
	TypeTIFF MediaType = "tiff"
)

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type      MediaType
	MIME      string
	Extension string
}

var results = map[MediaType]Result{
	TypeJPEG: {Type: TypeJPEG, MIME: "image/jpeg", Extension: "jpg"},
	TypePNG:  {Type: TypePNG, MIME: "image/png", Extension: "png"},
	TypeGIF:  {Type: TypeGIF, MIME: "image/gif", Extension: "gif"},
	TypeWEBP: {Type: TypeWEBP, MIME: "image/webp", Extension: "webp"},
	TypeBMP:  {Type: TypeBMP, MIME: "image/bmp", Extension: "bmp"},
	TypeTIFF: {Type: TypeTIFF, MIME: "image/tiff", Extension: "tif"},
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	switch {
	case isJPEG(head):
		return results[TypeJPEG], nil
	case isPNG(head):
		return results[TypePNG], nil
	case isGIF(head):
		return results[TypeGIF], nil
	case isWEBP(head):
		return results[TypeWEBP], nil
	case isBMP(head):
		return results[TypeBMP], nil
	case isTIFF(head):
		return results[TypeTIFF], nil
	}

	return Result{}, ErrUnknownType
}

// ByExtension resolves a requested output extension such as "jpg" or "png".
func ByExtension(ext string) (Result, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "jpeg":
		ext = "jpg"
	case "tiff":
		ext = "tif"
	}
	for _, r := range results {
		if r.Extension == ext {
			return r, true
		}
	}
	return Result{}, false
}

// Probe detects the type of data and reads its geometry without decoding
// the pixels.
func Probe(data []byte) (models.DerivedFields, error) {
	result, err := DetectHead(head(data))
	if err != nil {
		return models.DerivedFields{}, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.DerivedFields{}, fmt.Errorf("decode %s header: %w", result.Type, err)
	}

	return models.DerivedFields{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Mime:      result.MIME,
		Extension: result.Extension,
	}, nil
}

func head(data []byte) []byte {
	if len(data) > 512 {
		return data[:512]
	}
	return data
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}

func isBMP(head []byte) bool {
	return len(head) >= 2 && head[0] == 'B' && head[1] == 'M'
}

func isTIFF(head []byte) bool {
	return len(head) >= 4 &&
		(bytes.Equal(head[:4], []byte{'I', 'I', 0x2a, 0x00}) || bytes.Equal(head[:4], []byte{'M', 'M', 0x00, 0x2a}))
}

func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
