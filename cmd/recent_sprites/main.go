// recent_sprites: lists the most recently generated sprites in the SQLite database.
//
// With -verify, each listed sprite is regenerated from its stored parameters and
// compared against the stored image.

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"crawshaw.io/sqlite"
	"go.uber.org/zap"

	"github.com/maxhully/sprites"
	"github.com/maxhully/sprites/spritegen"
)

// verifySprite reports whether regenerating the sprite stored under key reproduces
// the stored bytes exactly.
func verifySprite(conn *sqlite.Conn, key string) (bool, error) {
	rec, err := sprites.GetSpriteByKey(conn, key)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, fmt.Errorf("%w: %q", sprites.ErrNotFound, key)
	}
	format, err := spritegen.FormatForContentType(rec.ContentType)
	if err != nil {
		return false, err
	}
	s, err := spritegen.Generate(rec.Params())
	if err != nil {
		return false, err
	}
	var regenerated bytes.Buffer
	if err := s.Encode(&regenerated, format); err != nil {
		return false, err
	}

	blob, err := sprites.OpenSpriteContents(conn, rec.SpriteID)
	if err != nil {
		return false, err
	}
	defer blob.Close()
	stored, err := io.ReadAll(blob)
	if err != nil {
		return false, err
	}
	return bytes.Equal(stored, regenerated.Bytes()), nil
}

func listSprites(w io.Writer, conn *sqlite.Conn, limit int, verify bool) error {
	recs, err := sprites.GetRecentSprites(conn, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tSIZE\tCREATED\tOK")
	for _, rec := range recs {
		ok := "-"
		if verify {
			matches, err := verifySprite(conn, rec.Key)
			if err != nil {
				return fmt.Errorf("verifying %q: %w", rec.Key, err)
			}
			ok = fmt.Sprint(matches)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", rec.Key, rec.ContentType, rec.Size, rec.CreatedAt.Format("2006-01-02 15:04:05"), ok)
	}
	return tw.Flush()
}

func main() {
	dbFilename := flag.String("db", "sprites.db", "Filename of the SQLite database to read")
	limit := flag.Int("n", 20, "How many sprites to list (negative lists all)")
	verify := flag.Bool("verify", false, "Regenerate each sprite and compare it to the stored image")
	flag.Parse()

	logger, err := sprites.NewLogger(true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := sprites.NewDB(*dbFilename, 1)
	if err != nil {
		logger.Fatal("couldn't open db", zap.String("db", *dbFilename), zap.Error(err))
	}
	defer db.Close()
	conn := db.Get(context.Background())
	defer db.Put(conn)

	if err := listSprites(os.Stdout, conn, *limit, *verify); err != nil {
		logger.Fatal("couldn't list sprites", zap.Error(err))
	}
}
