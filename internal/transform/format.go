package transform

import (
	"mediavault/internal/media/sniffer"
	"mediavault/internal/models"
)

// Convert re-encodes the image into the format named by Type ("png", "jpg",
// "gif", "bmp", "tif").
type Convert struct {
	encoder
	Type string
}

func (Convert) Name() string { return "convert" }

func (c Convert) Apply(state models.ImageState) (models.ImageState, error) {
	const op = "convert"
	target, ok := sniffer.ByExtension(c.Type)
	if !ok || target.Type == sniffer.TypeWEBP {
		return models.ImageState{}, invalid(op, "unsupported image type %q", c.Type)
	}
	if target.Extension == state.Extension {
		return state, nil
	}
	img, err := decode(op, state)
	if err != nil {
		return models.ImageState{}, err
	}
	return c.encode(op, img, target.Extension)
}

// Compress re-encodes with the given quality. Only lossy formats are
// affected, other formats are returned as they are.
type Compress struct {
	Quality int
}

func (Compress) Name() string { return "compress" }

func (c Compress) Apply(state models.ImageState) (models.ImageState, error) {
	const op = "compress"
	if c.Quality < 1 || c.Quality > 100 {
		return models.ImageState{}, invalid(op, "quality must be between 1 and 100")
	}
	if state.Extension != "jpg" {
		return state, nil
	}
	img, err := decode(op, state)
	if err != nil {
		return models.ImageState{}, err
	}
	return encoder{quality: c.Quality}.encode(op, img, state.Extension)
}
