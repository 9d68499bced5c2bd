package transform

import (
	"image/color"
	"strconv"
	"strings"
)

type params map[string]string

func (p params) intValue(op, key string, def int) (int, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(op, "%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

func (p params) required(op, key string) (int, error) {
	if _, ok := p[key]; !ok {
		return 0, invalid(op, "missing required parameter %s", key)
	}
	return p.intValue(op, key, 0)
}

func (p params) floatValue(op, key string) (float64, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return 0, invalid(op, "missing required parameter %s", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalid(op, "%s must be a number, got %q", key, raw)
	}
	return v, nil
}

func (p params) colorValue(op, key string, def color.Color) (color.Color, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	c, err := parseColor(raw)
	if err != nil {
		return nil, invalid(op, "%s: %v", key, err)
	}
	return c, nil
}

type builder func(enc encoder, p params) (Transformation, error)

var builders = map[string]builder{
	"border": func(enc encoder, p params) (Transformation, error) {
		const op = "border"
		c, err := p.colorValue(op, "color", color.Black)
		if err != nil {
			return nil, err
		}
		w, err := p.intValue(op, "width", 1)
		if err != nil {
			return nil, err
		}
		h, err := p.intValue(op, "height", 1)
		if err != nil {
			return nil, err
		}
		return Border{encoder: enc, Color: c, Width: w, Height: h}, nil
	},
	"canvas": func(enc encoder, p params) (Transformation, error) {
		const op = "canvas"
		w, err := p.required(op, "width")
		if err != nil {
			return nil, err
		}
		h, err := p.required(op, "height")
		if err != nil {
			return nil, err
		}
		x, err := p.intValue(op, "x", 0)
		if err != nil {
			return nil, err
		}
		y, err := p.intValue(op, "y", 0)
		if err != nil {
			return nil, err
		}
		bg, err := p.colorValue(op, "bg", color.White)
		if err != nil {
			return nil, err
		}
		return Canvas{encoder: enc, Width: w, Height: h, Mode: p["mode"], X: x, Y: y, Background: bg}, nil
	},
	"compress": func(_ encoder, p params) (Transformation, error) {
		q, err := p.required("compress", "quality")
		if err != nil {
			return nil, err
		}
		return Compress{Quality: q}, nil
	},
	"convert": func(enc encoder, p params) (Transformation, error) {
		if p["type"] == "" {
			return nil, invalid("convert", "missing required parameter type")
		}
		return Convert{encoder: enc, Type: p["type"]}, nil
	},
	"crop": func(enc encoder, p params) (Transformation, error) {
		const op = "crop"
		x, err := p.intValue(op, "x", 0)
		if err != nil {
			return nil, err
		}
		y, err := p.intValue(op, "y", 0)
		if err != nil {
			return nil, err
		}
		w, err := p.required(op, "width")
		if err != nil {
			return nil, err
		}
		h, err := p.required(op, "height")
		if err != nil {
			return nil, err
		}
		return Crop{encoder: enc, X: x, Y: y, Width: w, Height: h}, nil
	},
	"desaturate": func(enc encoder, _ params) (Transformation, error) {
		return Desaturate{encoder: enc}, nil
	},
	"flipHorizontally": func(enc encoder, _ params) (Transformation, error) {
		return FlipHorizontally{encoder: enc}, nil
	},
	"flipVertically": func(enc encoder, _ params) (Transformation, error) {
		return FlipVertically{encoder: enc}, nil
	},
	"maxSize": func(enc encoder, p params) (Transformation, error) {
		const op = "maxSize"
		w, err := p.intValue(op, "width", 0)
		if err != nil {
			return nil, err
		}
		h, err := p.intValue(op, "height", 0)
		if err != nil {
			return nil, err
		}
		return MaxSize{encoder: enc, MaxWidth: w, MaxHeight: h}, nil
	},
	"resize": func(enc encoder, p params) (Transformation, error) {
		const op = "resize"
		w, err := p.intValue(op, "width", 0)
		if err != nil {
			return nil, err
		}
		h, err := p.intValue(op, "height", 0)
		if err != nil {
			return nil, err
		}
		return Resize{encoder: enc, Width: w, Height: h}, nil
	},
	"rotate": func(enc encoder, p params) (Transformation, error) {
		const op = "rotate"
		angle, err := p.floatValue(op, "angle")
		if err != nil {
			return nil, err
		}
		bg, err := p.colorValue(op, "bg", color.Black)
		if err != nil {
			return nil, err
		}
		return Rotate{encoder: enc, Angle: angle, Background: bg}, nil
	},
	"thumbnail": func(enc encoder, p params) (Transformation, error) {
		const op = "thumbnail"
		w, err := p.intValue(op, "width", 50)
		if err != nil {
			return nil, err
		}
		h, err := p.intValue(op, "height", 50)
		if err != nil {
			return nil, err
		}
		return Thumbnail{encoder: enc, Width: w, Height: h, Fit: p["fit"]}, nil
	},
}

// Parse turns query values of the form "crop:x=0,y=0,width=50,height=50" into
// transformations, keeping their order. quality applies to lossy encodes;
// zero means DefaultQuality.
func Parse(specs []string, quality int) ([]Transformation, error) {
	enc := encoder{quality: quality}
	ops := make([]Transformation, 0, len(specs))
	for i, spec := range specs {
		name, rawParams, _ := strings.Cut(strings.TrimSpace(spec), ":")
		build, ok := builders[name]
		if !ok {
			return nil, invalid("parse", "unknown transformation %q", name)
		}

		p, err := parseParams(name, rawParams)
		if err != nil {
			return nil, err
		}
		t, err := build(enc, p)
		if err != nil {
			return nil, stepError(i, name, err)
		}
		ops = append(ops, t)
	}
	return ops, nil
}

func parseParams(name, raw string) (params, error) {
	p := params{}
	if raw == "" {
		return p, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, invalid(name, "malformed parameter %q", pair)
		}
		p[key] = strings.TrimSpace(value)
	}
	return p, nil
}
