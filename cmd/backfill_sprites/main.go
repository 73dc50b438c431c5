// backfill_sprites: generates a sprite for every name in a list (one per line) and
// writes them all to the SQLite database in one savepoint.
//
// Names that already have a sprite are regenerated, which is also how to refresh
// them after the generation defaults change.

package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxhully/sprites"
	"github.com/maxhully/sprites/spritegen"
)

// Blank lines and duplicates are skipped
func readNames(r io.Reader) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, scanner.Err()
}

type generatedSprite struct {
	rec      *sprites.SpriteRecord
	contents []byte
}

// Generation is independent per name, so it runs in parallel. Only the writes need
// the connection.
func generateAll(ctx context.Context, names []string, defaults spritegen.Params, workers int) ([]generatedSprite, error) {
	results := make([]generatedSprite, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := defaults.Seeded(name)
			if err != nil {
				return fmt.Errorf("%q: %w", name, err)
			}
			s, err := spritegen.Generate(p)
			if err != nil {
				return fmt.Errorf("%q: %w", name, err)
			}
			buf := new(bytes.Buffer)
			if err := s.EncodePNG(buf); err != nil {
				return fmt.Errorf("%q: %w", name, err)
			}
			results[i] = generatedSprite{
				rec:      sprites.NewSpriteRecord(name, p, s, spritegen.FormatPNG),
				contents: buf.Bytes(),
			}
			return nil
		})
	}
	return results, g.Wait()
}

func backfillSprites(conn *sqlite.Conn, generated []generatedSprite, logger *zap.Logger) (err error) {
	defer sqlitex.Save(conn)(&err)
	for i := range generated {
		logger.Debug("saving sprite", zap.String("key", generated[i].rec.Key))
		if _, err = sprites.SaveSprite(conn, generated[i].rec, generated[i].contents); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	var dbFilename, namesFilename string
	var workers int
	flag.StringVar(&dbFilename, "db", "sprites.db", "Filename of the SQLite database to connect to")
	flag.StringVar(&namesFilename, "names", "-", "File with one name per line (- for stdin)")
	flag.IntVar(&workers, "workers", runtime.NumCPU(), "How many sprites to generate at once")
	flag.Parse()

	logger, err := sprites.NewLogger(true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	in := os.Stdin
	if namesFilename != "-" {
		if in, err = os.Open(namesFilename); err != nil {
			logger.Fatal("couldn't open names", zap.Error(err))
		}
		defer in.Close()
	}
	names, err := readNames(in)
	if err != nil {
		logger.Fatal("couldn't read names", zap.Error(err))
	}

	t := sprites.Timer(logger, "generating sprites")
	generated, err := generateAll(context.Background(), names, spritegen.DefaultParams(), max(workers, 1))
	if err != nil {
		logger.Fatal("couldn't generate sprites", zap.Error(err))
	}
	t()

	db, err := sprites.NewDB(dbFilename, 1)
	if err != nil {
		logger.Fatal("couldn't open db", zap.Error(err))
	}
	defer db.Close()
	conn := db.Get(context.Background())
	defer db.Put(conn)
	if err := backfillSprites(conn, generated, logger); err != nil {
		logger.Fatal("couldn't save sprites", zap.Error(err))
	}
	logger.Info("backfilled sprites", zap.Int("count", len(generated)))
}
