// Package spritegen generates small, horizontally symmetric pixel-art sprites by
// evolving a seeded cellular automaton and painting it with a seeded palette.
package spritegen

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"
	"golang.org/x/image/draw"
)

const (
	MaxIterations = 10000
	MaxSize       = 4096

	DefaultIterations = 1
	DefaultExtinction = 0.125
	DefaultSurvival   = 0.375
	DefaultSize       = 180
)

// Params bundles everything generation depends on. A nil SpriteSeed or ColorSeeds
// means "pick one at random".
type Params struct {
	Iterations int
	Extinction float64
	Survival   float64
	Size       int
	SpriteSeed *int64
	ColorSeeds []int64
}

func DefaultParams() Params {
	return Params{
		Iterations: DefaultIterations,
		Extinction: DefaultExtinction,
		Survival:   DefaultSurvival,
		Size:       DefaultSize,
	}
}

// Seeded returns a copy of p using the seeds derived from text.
func (p Params) Seeded(text string) (Params, error) {
	spriteSeed, colorSeeds, err := DeriveSeed(text)
	if err != nil {
		return p, err
	}
	p.SpriteSeed = &spriteSeed
	p.ColorSeeds = colorSeeds
	return p, nil
}

func checkThreshold(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be in [0, 1], got %v", ErrParameterRange, name, v)
	}
	return nil
}

func (p Params) Validate() error {
	if p.Iterations < 0 || p.Iterations > MaxIterations {
		return fmt.Errorf("%w: n_iters must be in [0, %d], got %d", ErrParameterRange, MaxIterations, p.Iterations)
	}
	if err := checkThreshold("extinction", p.Extinction); err != nil {
		return err
	}
	if err := checkThreshold("survival", p.Survival); err != nil {
		return err
	}
	if p.Size <= 0 || p.Size > MaxSize {
		return fmt.Errorf("%w: size must be in [1, %d], got %d", ErrParameterRange, MaxSize, p.Size)
	}
	if p.ColorSeeds != nil && len(p.ColorSeeds) != NumColorChannels {
		return fmt.Errorf("%w: expected %d color seeds, got %d", ErrParameterRange, NumColorChannels, len(p.ColorSeeds))
	}
	return nil
}

// Sprite is a generated image along with everything needed to reproduce it.
type Sprite struct {
	SpriteSeed int64
	ColorSeeds []int64
	Palette    Palette

	grid *Grid
	img  *image.RGBA
}

func (s *Sprite) Image() image.Image { return s.img }

func (s *Sprite) Size() int { return s.img.Bounds().Dx() }

// Grid returns a copy of the evolved cell grid (without the outline padding).
func (s *Sprite) Grid() *Grid {
	g := NewGrid(s.grid.W, s.grid.H)
	copy(g.cur, s.grid.cur)
	return g
}

// GenerateSprite is Generate with the parameters spelled out.
func GenerateSprite(nIters int, extinction, survival float64, size int, spriteSeed *int64, colorSeeds []int64) (*Sprite, error) {
	return Generate(Params{
		Iterations: nIters,
		Extinction: extinction,
		Survival:   survival,
		Size:       size,
		SpriteSeed: spriteSeed,
		ColorSeeds: colorSeeds,
	})
}

func newSpriteRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

func Generate(p Params) (*Sprite, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Sprite{}
	if p.SpriteSeed != nil {
		s.SpriteSeed = *p.SpriteSeed
	} else {
		s.SpriteSeed = rand.Int64()
	}
	if p.ColorSeeds != nil {
		s.ColorSeeds = slices.Clone(p.ColorSeeds)
	} else {
		s.ColorSeeds = make([]int64, NumColorChannels)
		for i := range s.ColorSeeds {
			s.ColorSeeds[i] = rand.Int64()
		}
	}

	s.grid = seedGrid(newSpriteRand(s.SpriteSeed))
	for range p.Iterations {
		s.grid.Step(p.Extinction, p.Survival)
	}
	s.Palette = newPalette(s.ColorSeeds)

	img, err := s.rasterize(p.Size)
	if err != nil {
		return nil, err
	}
	s.img = img
	return s, nil
}

// The grid is drawn with a one cell border so there's always room for the outline
const pad = 1

func (s *Sprite) cellColor(px, py int) color.RGBA {
	x, y := px-pad, py-pad
	g := s.grid
	if g.Alive(x, y) {
		if !g.Alive(x, y+1) {
			return s.Palette.Shade
		}
		return s.Palette.Body
	}
	if g.Alive(x-1, y) || g.Alive(x+1, y) || g.Alive(x, y-1) || g.Alive(x, y+1) {
		return s.Palette.Outline
	}
	return s.Palette.Background
}

func (s *Sprite) rasterize(size int) (*image.RGBA, error) {
	cols, rows := s.grid.W+2*pad, s.grid.H+2*pad
	cells := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for py := 0; py < rows; py++ {
		for px := 0; px < cols; px++ {
			cells.SetRGBA(px, py, s.cellColor(px, py))
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), cells, cells.Bounds(), draw.Src, nil)
	if dst.Bounds().Dx() != size || dst.Bounds().Dy() != size {
		return nil, fmt.Errorf("%w: expected %dx%d raster, got %v", ErrRender, size, size, dst.Bounds())
	}
	return dst, nil
}

func (s *Sprite) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, s.img); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	return nil
}

// Canvas draws the sprite as one rectangle per cell, in millimeters at one
// millimeter per output pixel.
func (s *Sprite) Canvas() *canvas.Canvas {
	size := float64(s.Size())
	c := canvas.New(size, size)
	ctx := canvas.NewContext(c)

	cols, rows := s.grid.W+2*pad, s.grid.H+2*pad
	cw, ch := size/float64(cols), size/float64(rows)
	for py := 0; py < rows; py++ {
		for px := 0; px < cols; px++ {
			ctx.SetFillColor(s.cellColor(px, py))
			// canvas has y pointing up
			ctx.DrawPath(float64(px)*cw, float64(rows-1-py)*ch, canvas.Rectangle(cw, ch))
		}
	}
	return c
}

func (s *Sprite) EncodeSVG(w io.Writer) error {
	svgWriter := renderers.SVG()
	if err := svgWriter(w, s.Canvas()); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	return nil
}

type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrParameterRange, s)
}

// FormatForContentType is the inverse of Format.ContentType.
func FormatForContentType(contentType string) (Format, error) {
	for _, f := range []Format{FormatPNG, FormatSVG} {
		if f.ContentType() == contentType {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported content type %q", ErrParameterRange, contentType)
}

func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) Ext() string {
	return "." + string(f)
}

func (s *Sprite) Encode(w io.Writer, f Format) error {
	if f == FormatSVG {
		return s.EncodeSVG(w)
	}
	return s.EncodePNG(w)
}
