package transform

import (
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"

	"mediavault/internal/models"
)

type Desaturate struct{ encoder }

func (Desaturate) Name() string { return "desaturate" }

func (d Desaturate) Apply(state models.ImageState) (models.ImageState, error) {
	return d.mapImage("desaturate", state, func(img image.Image) image.Image { return imaging.Grayscale(img) })
}

// Border surrounds the image with Width pixels left/right and Height pixels
// top/bottom of Color.
type Border struct {
	encoder
	Color         color.Color
	Width, Height int
}

func (Border) Name() string { return "border" }

func (b Border) Apply(state models.ImageState) (models.ImageState, error) {
	const op = "border"
	if b.Width < 0 || b.Height < 0 {
		return models.ImageState{}, invalid(op, "border width and height must not be negative")
	}
	if b.Width > MaxDimension || b.Height > MaxDimension ||
		state.Width+2*b.Width > MaxDimension || state.Height+2*b.Height > MaxDimension {
		return models.ImageState{}, invalid(op, "bordered image would exceed %d pixels per side", MaxDimension)
	}
	fill := b.Color
	if fill == nil {
		fill = color.Black
	}
	return b.mapImage(op, state, func(img image.Image) image.Image {
		bounds := img.Bounds()
		bg := imaging.New(bounds.Dx()+2*b.Width, bounds.Dy()+2*b.Height, fill)
		return imaging.Paste(bg, img, image.Pt(b.Width, b.Height))
	})
}

const (
	CanvasFree    = "free"
	CanvasCenter  = "center"
	CanvasCenterX = "center-x"
	CanvasCenterY = "center-y"
)

// Canvas places the image on a new Width x Height background. In free mode
// X and Y position the image, the center modes compute one or both of them.
type Canvas struct {
	encoder
	Width, Height int
	Mode          string
	X, Y          int
	Background    color.Color
}

func (Canvas) Name() string { return "canvas" }

func (c Canvas) Apply(state models.ImageState) (models.ImageState, error) {
	const op = "canvas"
	if err := checkDimension(op, "width", c.Width); err != nil {
		return models.ImageState{}, err
	}
	if err := checkDimension(op, "height", c.Height); err != nil {
		return models.ImageState{}, err
	}
	switch c.Mode {
	case "", CanvasFree, CanvasCenter, CanvasCenterX, CanvasCenterY:
	default:
		return models.ImageState{}, invalid(op, "unknown mode %q", c.Mode)
	}
	if c.X < -MaxDimension || c.X > MaxDimension || c.Y < -MaxDimension || c.Y > MaxDimension {
		return models.ImageState{}, invalid(op, "x and y must be within %d pixels of the canvas", MaxDimension)
	}
	bg := c.Background
	if bg == nil {
		bg = color.White
	}

	return c.mapImage(op, state, func(img image.Image) image.Image {
		bounds := img.Bounds()
		x, y := c.X, c.Y
		if c.Mode == CanvasCenter || c.Mode == CanvasCenterX {
			x = (c.Width - bounds.Dx()) / 2
		}
		if c.Mode == CanvasCenter || c.Mode == CanvasCenterY {
			y = (c.Height - bounds.Dy()) / 2
		}
		return imaging.Paste(imaging.New(c.Width, c.Height, bg), img, image.Pt(x, y))
	})
}

// parseColor accepts rgb or rrggbb hex, with or without a leading '#'.
func parseColor(s string) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: b[0], G: b[1], B: b[2], A: 0xff}, nil
}
