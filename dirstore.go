package sprites

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"github.com/maxhully/sprites/spritegen"
)

// DirStore keeps one image file per key in a directory. Only the image itself is kept, so records opened
// from a DirStore carry the key, content type and modification time but no
// generation parameters.
type DirStore struct {
	Dir string
}

var _ SpriteStore = (*DirStore)(nil)

var dirStoreFormats = []spritegen.Format{spritegen.FormatPNG, spritegen.FormatSVG}

func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DirStore{Dir: dir}, nil
}

// Files are named by a hex digest of the key: always 64 characters, whatever the key
// contains, and never a path outside Dir.
func (d *DirStore) path(key string, f spritegen.Format) string {
	sum := blake2b.Sum256([]byte(key))
	return filepath.Join(d.Dir, hex.EncodeToString(sum[:])+f.Ext())
}

func (d *DirStore) Save(ctx context.Context, rec *SpriteRecord, contents []byte) (err error) {
	if err := validateKey(rec.Key); err != nil {
		return err
	}
	format, err := spritegen.FormatForContentType(rec.ContentType)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Write to a temp file and rename it into place, so readers never see half a
	// sprite.
	f, err := os.CreateTemp(d.Dir, ".sprite-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(contents); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Rename(f.Name(), d.path(rec.Key, format)); err != nil {
		return err
	}
	// A key holds a single sprite, whatever its format
	for _, other := range dirStoreFormats {
		if other == format {
			continue
		}
		if rmErr := os.Remove(d.path(rec.Key, other)); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return rmErr
		}
	}
	return nil
}

func (d *DirStore) Open(ctx context.Context, key string) (*SpriteRecord, io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	for _, format := range dirStoreFormats {
		f, err := os.Open(d.path(key, format))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		rec := &SpriteRecord{
			Key:         key,
			ContentType: format.ContentType(),
			CreatedAt:   info.ModTime().UTC(),
		}
		return rec, f, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrNotFound, key)
}
