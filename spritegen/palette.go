package spritegen

import (
	"image/color"
	"math"
	"math/rand/v2"
)

// HSL conversion code from
// https://github.com/gerow/go-color/blob/master/color.go
func hueToRGB(v1, v2, h float64) float64 {
	if h < 0 {
		h += 1
	}
	if h > 1 {
		h -= 1
	}
	switch {
	case 6*h < 1:
		return (v1 + (v2-v1)*6*h)
	case 2*h < 1:
		return v2
	case 3*h < 2:
		return v1 + (v2-v1)*((2.0/3.0)-h)*6
	}
	return v1
}

type hsl struct {
	h, s, l float64
}

func hslToRGB(c hsl) color.RGBA {
	h, s, l := c.h, c.s, c.l

	var v1, v2 float64
	if l < 0.5 {
		v2 = l * (1 + s)
	} else {
		v2 = (l + s) - (s * l)
	}

	v1 = 2*l - v2

	r := hueToRGB(v1, v2, h+(1.0/3.0))
	g := hueToRGB(v1, v2, h)
	b := hueToRGB(v1, v2, h-(1.0/3.0))

	return color.RGBA{
		R: uint8(math.Round(r * 255)),
		G: uint8(math.Round(g * 255)),
		B: uint8(math.Round(b * 255)),
		A: 255,
	}
}

type Palette struct {
	Background color.RGBA
	Outline    color.RGBA
	Body       color.RGBA
	Shade      color.RGBA
}

// channelValue draws a single float in [0, 1) from a color seed. Each channel gets
// its own source so that changing one seed only moves one channel.
func channelValue(seed int64) float64 {
	return rand.New(rand.NewPCG(uint64(seed), 0x5eed)).Float64()
}

func randInRange(x, min, max float64) float64 {
	return x*(max-min) + min
}

// newPalette picks the body color from the hue, saturation and lightness seeds and
// derives the rest of the palette from it.
func newPalette(colorSeeds []int64) Palette {
	body := hsl{
		channelValue(colorSeeds[0]),
		randInRange(channelValue(colorSeeds[1]), 0.55, 1.0),
		randInRange(channelValue(colorSeeds[2]), 0.40, 0.65),
	}
	shade := hsl{body.h, body.s, body.l * 0.75}
	outline := hsl{body.h, body.s * 0.8, body.l * 0.3}
	background := hsl{math.Mod(body.h+0.5, 1.0), 0.25, 0.93}
	return Palette{
		Background: hslToRGB(background),
		Outline:    hslToRGB(outline),
		Body:       hslToRGB(body),
		Shade:      hslToRGB(shade),
	}
}
