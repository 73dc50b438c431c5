// spritegen: writes a single sprite to a file.
//
//	spritegen -q hello -n-iters 5 -o hello.png

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/maxhully/sprites"
	"github.com/maxhully/sprites/spritegen"
)

// writeSprite writes through a temp file in the destination directory, so a failed
// encode never leaves a truncated image at path.
func writeSprite(path string, s *spritegen.Sprite, format spritegen.Format) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".spritegen-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err = s.Encode(f, format); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func main() {
	defaults := spritegen.DefaultParams()
	q := flag.String("q", "", "Text to derive the sprite's seeds from (random if empty)")
	nIters := flag.Int("n-iters", defaults.Iterations, "Number of automaton steps")
	extinction := flag.Float64("extinction", defaults.Extinction, "Extinction threshold, in [0, 1]")
	survival := flag.Float64("survival", defaults.Survival, "Survival threshold, in [0, 1]")
	size := flag.Int("size", defaults.Size, "Width and height of the sprite in pixels")
	formatName := flag.String("format", "png", "Output format (png or svg)")
	out := flag.String("o", "", "Output file (defaults to spritegen_out.<format>)")
	dev := flag.Bool("dev", true, "Human-readable logs")
	flag.Parse()

	logger, err := sprites.NewLogger(*dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	format, err := spritegen.ParseFormat(*formatName)
	if err != nil {
		logger.Fatal("bad format", zap.Error(err))
	}
	p := spritegen.Params{Iterations: *nIters, Extinction: *extinction, Survival: *survival, Size: *size}
	if *q != "" {
		if p, err = p.Seeded(*q); err != nil {
			logger.Fatal("couldn't derive seeds", zap.Error(err))
		}
	}
	s, err := spritegen.Generate(p)
	if err != nil {
		logger.Fatal("couldn't generate sprite", zap.Error(err))
	}

	path := *out
	if path == "" {
		path = "spritegen_out" + format.Ext()
	}
	if err := writeSprite(path, s, format); err != nil {
		logger.Fatal("couldn't write sprite", zap.String("path", path), zap.Error(err))
	}
	logger.Info("created sprite",
		zap.String("path", path),
		zap.Int64("sprite_seed", s.SpriteSeed),
		zap.Int64s("color_seeds", s.ColorSeeds),
	)
}
