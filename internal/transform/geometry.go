package transform

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"mediavault/internal/models"
)

type FlipHorizontally struct{ encoder }

func (FlipHorizontally) Name() string { return "flipHorizontally" }

func (f FlipHorizontally) Apply(state models.ImageState) (models.ImageState, error) {
	return f.mapImage("flipHorizontally", state, func(img image.Image) image.Image { return imaging.FlipH(img) })
}

type FlipVertically struct{ encoder }

func (FlipVertically) Name() string { return "flipVertically" }

func (f FlipVertically) Apply(state models.ImageState) (models.ImageState, error) {
	return f.mapImage("flipVertically", state, func(img image.Image) image.Image { return imaging.FlipV(img) })
}

// Resize scales to Width x Height. When one side is zero it is derived from
// the source aspect ratio.
type Resize struct {
	encoder
	Width, Height int
}

func (Resize) Name() string { return "resize" }

func (r Resize) Apply(state models.ImageState) (models.ImageState, error) {
	const op = "resize"
	if r.Width == 0 && r.Height == 0 {
		return models.ImageState{}, invalid(op, "missing both width and height")
	}
	if r.Width != 0 {
		if err := checkDimension(op, "width", r.Width); err != nil {
			return models.ImageState{}, err
		}
	}
	if r.Height != 0 {
		if err := checkDimension(op, "height", r.Height); err != nil {
			return models.ImageState{}, err
		}
	}
	return r.mapImage(op, state, func(img image.Image) image.Image {
		return imaging.Resize(img, r.Width, r.Height, imaging.Lanczos)
	})
}

// MaxSize shrinks the image to fit inside the box, keeping the aspect ratio.
// Images already inside the box pass through unchanged.
type MaxSize struct {
	encoder
	MaxWidth, MaxHeight int
}

func (MaxSize) Name() string { return "maxSize" }

func (m MaxSize) Apply(state models.ImageState) (models.ImageState, error) {
	const op = "maxSize"
	if m.MaxWidth == 0 && m.MaxHeight == 0 {
		return models.ImageState{}, invalid(op, "missing both width and height")
	}
	maxW, maxH := m.MaxWidth, m.MaxHeight
	if maxW == 0 {
		maxW = MaxDimension
	}
	if maxH == 0 {
		maxH = MaxDimension
	}
	if err := checkDimension(op, "width", maxW); err != nil {
		return models.ImageState{}, err
	}
	if err := checkDimension(op, "height", maxH); err != nil {
		return models.ImageState{}, err
	}
	if state.Width <= maxW && state.Height <= maxH {
		return state, nil
	}
	return m.mapImage(op, state, func(img image.Image) image.Image {
		return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
	})
}

const (
	FitOutbound = "outbound"
	FitInset    = "inset"
)

// Thumbnail produces a Width x Height image. Outbound fills the box and crops
// the overflow, inset fits the whole image inside the box.
type Thumbnail struct {
	encoder
	Width, Height int
	Fit           string
}

func (Thumbnail) Name() string { return "thumbnail" }

func (t Thumbnail) Apply(state models.ImageState) (models.ImageState, error) {
	const op = "thumbnail"
	if err := checkDimension(op, "width", t.Width); err != nil {
		return models.ImageState{}, err
	}
	if err := checkDimension(op, "height", t.Height); err != nil {
		return models.ImageState{}, err
	}
	switch t.Fit {
	case "", FitOutbound:
		return t.mapImage(op, state, func(img image.Image) image.Image {
			return imaging.Fill(img, t.Width, t.Height, imaging.Center, imaging.Lanczos)
		})
	case FitInset:
		return t.mapImage(op, state, func(img image.Image) image.Image {
			return imaging.Fit(img, t.Width, t.Height, imaging.Lanczos)
		})
	default:
		return models.ImageState{}, invalid(op, "unknown fit %q", t.Fit)
	}
}

// Rotate turns the image clockwise by Angle degrees, filling uncovered
// corners with Background.
type Rotate struct {
	encoder
	Angle      float64
	Background color.Color
}

func (Rotate) Name() string { return "rotate" }

func (r Rotate) Apply(state models.ImageState) (models.ImageState, error) {
	const op = "rotate"
	bg := r.Background
	if bg == nil {
		bg = color.Black
	}
	// imaging rotates counter-clockwise.
	return r.mapImage(op, state, func(img image.Image) image.Image {
		return imaging.Rotate(img, -r.Angle, bg)
	})
}

func (e encoder) mapImage(op string, state models.ImageState, fn func(image.Image) image.Image) (models.ImageState, error) {
	img, err := decode(op, state)
	if err != nil {
		return models.ImageState{}, err
	}
	out := fn(img)
	if out.Bounds().Empty() {
		return models.ImageState{}, invalid(op, "resulting image has no pixels")
	}
	return e.encode(op, out, state.Extension)
}
