// Package transform applies ordered chains of image operations to an
// ImageState. Every operation decodes the incoming blob, works on pixels and
// re-encodes, so each step hands the next one a complete, self-describing
// state.
package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"mediavault/internal/apperr"
	"mediavault/internal/media/sniffer"
	"mediavault/internal/models"
)

const (
	DefaultQuality = 90
	MaxDimension   = 16384
)

type Transformation interface {
	Name() string
	Apply(state models.ImageState) (models.ImageState, error)
}

type Pipeline struct {
	// MaxPixels rejects sources larger than width*height before decoding.
	// Zero disables the check.
	MaxPixels int
}

// Run applies ops in order. The first failing step aborts the chain and no
// state is returned with the error.
func (p Pipeline) Run(initial models.ImageState, ops []Transformation) (models.ImageState, error) {
	if len(initial.Blob) == 0 {
		return models.ImageState{}, apperr.Transformation("transform", "empty source image", apperr.ClassServer, nil)
	}
	if p.MaxPixels > 0 && initial.Width*initial.Height > p.MaxPixels {
		return models.ImageState{}, apperr.Transformation("transform",
			fmt.Sprintf("source image exceeds %d pixels", p.MaxPixels), apperr.ClassClient, nil)
	}

	state := initial
	for i, op := range ops {
		next, err := op.Apply(state)
		if err != nil {
			return models.ImageState{}, stepError(i, op.Name(), err)
		}
		state = next
	}
	return state, nil
}

func stepError(index int, name string, err error) error {
	op := fmt.Sprintf("transformation %d (%s)", index+1, name)
	var e *apperr.Error
	if errors.As(err, &e) {
		return apperr.Transformation(op, e.Message, e.Class, e.Err)
	}
	return apperr.Transformation(op, "transformation failed", apperr.ClassServer, err)
}

func invalid(op, format string, args ...any) error {
	return apperr.Transformation(op, fmt.Sprintf(format, args...), apperr.ClassClient, nil)
}

func failed(op, message string, err error) error {
	return apperr.Transformation(op, message, apperr.ClassServer, err)
}

func decode(op string, state models.ImageState) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(state.Blob))
	if err != nil {
		return nil, failed(op, "unable to decode image", err)
	}
	return img, nil
}

// encoder writes the result of an operation back into an ImageState in the
// source format. WebP has no encoder available, so WebP sources come out
// as PNG.
type encoder struct {
	quality int
}

func (e encoder) encode(op string, img image.Image, ext string) (models.ImageState, error) {
	target, ok := sniffer.ByExtension(ext)
	if !ok || target.Type == sniffer.TypeWEBP {
		target, _ = sniffer.ByExtension("png")
	}
	format, err := imaging.FormatFromExtension(target.Extension)
	if err != nil {
		return models.ImageState{}, failed(op, "unsupported output format", err)
	}

	quality := e.quality
	if quality <= 0 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return models.ImageState{}, failed(op, "unable to encode image", err)
	}

	bounds := img.Bounds()
	return models.ImageState{
		Blob:      buf.Bytes(),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Mime:      target.MIME,
		Extension: target.Extension,
	}, nil
}

func checkDimension(op, name string, v int) error {
	if v <= 0 {
		return invalid(op, "%s must be positive", name)
	}
	if v > MaxDimension {
		return invalid(op, "%s must not exceed %d", name, MaxDimension)
	}
	return nil
}
