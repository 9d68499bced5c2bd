package transform

import (
	"image"

	"github.com/disintegration/imaging"

	"mediavault/internal/models"
)

// Crop cuts a width x height region starting at (X, Y). The region is
// clipped to the source, so the resulting geometry may be smaller than
// requested.
type Crop struct {
	encoder
	X, Y          int
	Width, Height int
}

func (Crop) Name() string { return "crop" }

func (c Crop) Apply(state models.ImageState) (models.ImageState, error) {
	const op = "crop"
	if c.X < 0 || c.Y < 0 {
		return models.ImageState{}, invalid(op, "x and y must not be negative")
	}
	if err := checkDimension(op, "width", c.Width); err != nil {
		return models.ImageState{}, err
	}
	if err := checkDimension(op, "height", c.Height); err != nil {
		return models.ImageState{}, err
	}

	img, err := decode(op, state)
	if err != nil {
		return models.ImageState{}, err
	}

	bounds := img.Bounds()
	if c.X >= bounds.Dx() || c.Y >= bounds.Dy() {
		return models.ImageState{}, invalid(op, "crop origin (%d,%d) is outside the %dx%d image",
			c.X, c.Y, bounds.Dx(), bounds.Dy())
	}
	// Width and height are clipped before adding so the corner cannot wrap.
	w := min(c.Width, bounds.Dx()-c.X)
	h := min(c.Height, bounds.Dy()-c.Y)
	region := image.Rect(c.X, c.Y, c.X+w, c.Y+h).Add(bounds.Min)

	return c.encode(op, imaging.Crop(img, region), state.Extension)
}
