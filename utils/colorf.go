package utils

import (
	"image/color"
)

// ColorFloat is a straight alpha rgba color with components in 0..1.
type ColorFloat [4]float32

func channel(v float32) float32 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}

// RGBA implements color.Color, components are clamped and premultiplied.
func (c ColorFloat) RGBA() (r, g, b, a uint32) {
	const mf = float32(256*256 - 1)
	alpha := channel(c[3])
	r = uint32(channel(c[0])*alpha*mf + 0.5)
	g = uint32(channel(c[1])*alpha*mf + 0.5)
	b = uint32(channel(c[2])*alpha*mf + 0.5)
	a = uint32(alpha*mf + 0.5)
	return
}

// Bytes returns clamped 8 bit components without premultiplication.
func (c ColorFloat) Bytes() [4]uint8 {
	var out [4]uint8
	for i := range c {
		out[i] = uint8(channel(c[i])*255 + 0.5)
	}
	return out
}

func NewColorFloatA(c []float32) ColorFloat {
	return ColorFloat{c[0], c[1], c[2], c[3]}
}

func NewColorFloat(c []float32) ColorFloat {
	return ColorFloat{c[0], c[1], c[2], 1.0}
}

var _ color.Color = ColorFloat{}
