package spritegen

import (
	"bytes"
	"errors"
	"flag"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var update = flag.Bool("update", false, "rewrite the golden files in testdata/")

func seeded(t *testing.T, text string) Params {
	t.Helper()
	p, err := DefaultParams().Seeded(text)
	require.NoError(t, err)
	return p
}

func encodePNG(t *testing.T, s *Sprite) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, s.EncodePNG(buf))
	return buf.Bytes()
}

func TestGenerateSprite(t *testing.T) {
	s, err := Generate(DefaultParams())
	require.NoError(t, err)
	assert.False(t, s.Canvas().Empty())
	assert.Equal(t, DefaultSize, s.Size())
	assert.Len(t, s.ColorSeeds, NumColorChannels)
}

func TestGenerateIsDeterministic(t *testing.T) {
	p := seeded(t, "abc")
	p.Iterations = 3
	first, err := Generate(p)
	require.NoError(t, err)
	second, err := Generate(p)
	require.NoError(t, err)
	assert.Equal(t, encodePNG(t, first), encodePNG(t, second))
	assert.Equal(t, first.SpriteSeed, *p.SpriteSeed)
	assert.Equal(t, first.ColorSeeds, p.ColorSeeds)
}

func TestGenerateDoesNotKeepCallerSeeds(t *testing.T) {
	p := seeded(t, "abc")
	s, err := Generate(p)
	require.NoError(t, err)
	p.ColorSeeds[0] = 0
	assert.NotEqual(t, int64(0), s.ColorSeeds[0])
}

func TestGenerateConcurrently(t *testing.T) {
	p := seeded(t, "concurrent")
	want, err := Generate(p)
	require.NoError(t, err)
	wantBytes := encodePNG(t, want)

	results := make([][]byte, 8)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			s, err := Generate(p)
			if err != nil {
				return err
			}
			buf := new(bytes.Buffer)
			if err := s.EncodePNG(buf); err != nil {
				return err
			}
			results[i] = buf.Bytes()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, got := range results {
		assert.Equal(t, wantBytes, got)
	}
}

func TestOutputSize(t *testing.T) {
	for _, size := range []int{1, 7, 10, 64, 180, 333} {
		p := seeded(t, "size")
		p.Size = size
		s, err := Generate(p)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(encodePNG(t, s)))
		require.NoError(t, err)
		assert.Equal(t, size, img.Bounds().Dx(), "width for size %d", size)
		assert.Equal(t, size, img.Bounds().Dy(), "height for size %d", size)
	}
}

func TestZeroIterationsIsInitialState(t *testing.T) {
	p := seeded(t, "abc")
	p.Iterations = 0
	s, err := Generate(p)
	require.NoError(t, err)

	assert.Equal(t, seedGrid(newSpriteRand(*p.SpriteSeed)).Cells(), s.Grid().Cells())

	img := s.Image()
	first := img.At(0, 0)
	uniform := true
	for y := 0; y < img.Bounds().Dy() && uniform; y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			if img.At(x, y) != first {
				uniform = false
				break
			}
		}
	}
	assert.False(t, uniform, "expected the unevolved sprite to have more than one color")
}

func TestSpritesAreSymmetric(t *testing.T) {
	for _, text := range []string{"a", "b", "hello", "sprite"} {
		p := seeded(t, text)
		p.Iterations = 4
		s, err := Generate(p)
		require.NoError(t, err)
		g := s.Grid()
		for y := 0; y < g.H; y++ {
			for x := 0; x < g.W; x++ {
				assert.Equal(t, g.Alive(x, y), g.Alive(g.W-1-x, y), "%q: cell (%d,%d)", text, x, y)
			}
		}
	}
}

func TestThresholdsChangeOutput(t *testing.T) {
	p := seeded(t, "thresholds")
	p.Iterations = 0
	initial, err := Generate(p)
	require.NoError(t, err)

	// With both thresholds at 1, every dead cell is born and every live cell dies.
	p.Iterations = 1
	p.Extinction, p.Survival = 1, 1
	flipped, err := Generate(p)
	require.NoError(t, err)
	assert.Equal(t, gridW*gridH-initial.Grid().Population(), flipped.Grid().Population())
	assert.NotEqual(t, encodePNG(t, initial), encodePNG(t, flipped))
}

func TestUnseededIsRandom(t *testing.T) {
	first, err := GenerateSprite(1, 0.125, 0.375, 64, nil, nil)
	require.NoError(t, err)
	second, err := GenerateSprite(1, 0.125, 0.375, 64, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, encodePNG(t, first), encodePNG(t, second))

	// The seeds that were drawn are enough to reproduce the sprite
	again, err := GenerateSprite(1, 0.125, 0.375, 64, &first.SpriteSeed, first.ColorSeeds)
	require.NoError(t, err)
	assert.Equal(t, encodePNG(t, first), encodePNG(t, again))
}

func TestParameterRange(t *testing.T) {
	var testCases = []struct {
		name   string
		modify func(p *Params)
	}{
		{"zero size", func(p *Params) { p.Size = 0 }},
		{"negative size", func(p *Params) { p.Size = -5 }},
		{"huge size", func(p *Params) { p.Size = MaxSize + 1 }},
		{"negative iterations", func(p *Params) { p.Iterations = -1 }},
		{"too many iterations", func(p *Params) { p.Iterations = MaxIterations + 1 }},
		{"negative extinction", func(p *Params) { p.Extinction = -0.1 }},
		{"survival above one", func(p *Params) { p.Survival = 1.5 }},
		{"NaN extinction", func(p *Params) { p.Extinction = math.NaN() }},
		{"too few color seeds", func(p *Params) { p.ColorSeeds = []int64{1, 2} }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			p := DefaultParams()
			testCase.modify(&p)
			s, err := Generate(p)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, ErrParameterRange), "got %v", err)
		})
	}
}

func TestEncodeSVG(t *testing.T) {
	s, err := Generate(seeded(t, "svg"))
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	require.NoError(t, s.Encode(buf, FormatSVG))
	assert.True(t, strings.Contains(buf.String(), "<svg"), "expected an svg document")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	assert.NoError(t, err)
	assert.Equal(t, FormatPNG, f)
	f, err = ParseFormat("svg")
	assert.NoError(t, err)
	assert.Equal(t, "image/svg+xml", f.ContentType())
	_, err = ParseFormat("gif")
	assert.ErrorIs(t, err, ErrParameterRange)
}

func TestFormatForContentType(t *testing.T) {
	for _, f := range []Format{FormatPNG, FormatSVG} {
		got, err := FormatForContentType(f.ContentType())
		assert.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := FormatForContentType("image/gif")
	assert.ErrorIs(t, err, ErrParameterRange)
}

func TestHelloMatchesGolden(t *testing.T) {
	spriteSeed, colorSeeds, err := DeriveSeed("hello")
	require.NoError(t, err)
	s, err := GenerateSprite(5, 0.125, 0.375, 180, &spriteSeed, colorSeeds)
	require.NoError(t, err)
	got := encodePNG(t, s)

	golden := filepath.Join("testdata", "hello.png")
	if *update {
		require.NoError(t, os.WriteFile(golden, got, 0o644))
	}
	contents, err := os.ReadFile(golden)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(contents))
	require.NoError(t, err)
	want, ok := decoded.(*image.RGBA)
	require.True(t, ok, "expected an 8-bit truecolor golden file, got %T", decoded)

	require.Equal(t, image.Rect(0, 0, 180, 180), want.Bounds())
	assert.True(t, bytes.Equal(want.Pix, s.img.Pix), "sprite for %q no longer matches %s", "hello", golden)

	// The golden file may have been written by another encoder, so compare against
	// our own encoding of it.
	wantBytes := new(bytes.Buffer)
	require.NoError(t, png.Encode(wantBytes, want))
	assert.True(t, bytes.Equal(wantBytes.Bytes(), got))
}
