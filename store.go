package sprites

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/maxhully/sprites/spritegen"
)

var (
	ErrNotFound   = errors.New("sprites: no sprite with this key")
	ErrInvalidKey = errors.New("sprites: invalid sprite key")
)

const maxKeyLength = 200

// SpriteRecord describes a stored sprite: the key it's addressed by and how to
// regenerate it.
type SpriteRecord struct {
	// Only set by DB
	SpriteID    int64
	Key         string
	ContentType string
	CreatedAt   time.Time
	Iterations  int
	Extinction  float64
	Survival    float64
	Size        int
	SpriteSeed  int64
	ColorSeeds  []int64
}

func NewSpriteRecord(key string, p spritegen.Params, s *spritegen.Sprite, f spritegen.Format) *SpriteRecord {
	return &SpriteRecord{
		Key:         key,
		ContentType: f.ContentType(),
		CreatedAt:   utcNow(),
		Iterations:  p.Iterations,
		Extinction:  p.Extinction,
		Survival:    p.Survival,
		Size:        s.Size(),
		SpriteSeed:  s.SpriteSeed,
		ColorSeeds:  slices.Clone(s.ColorSeeds),
	}
}

// Params returns the generation parameters that reproduce this sprite.
func (r *SpriteRecord) Params() spritegen.Params {
	spriteSeed := r.SpriteSeed
	return spritegen.Params{
		Iterations: r.Iterations,
		Extinction: r.Extinction,
		Survival:   r.Survival,
		Size:       r.Size,
		SpriteSeed: &spriteSeed,
		ColorSeeds: slices.Clone(r.ColorSeeds),
	}
}

// SpriteStore persists encoded sprites under a caller-chosen key. Saving under an
// existing key replaces the old sprite.
type SpriteStore interface {
	Save(ctx context.Context, rec *SpriteRecord, contents []byte) error
	// The caller must close the returned reader.
	Open(ctx context.Context, key string) (*SpriteRecord, io.ReadCloser, error)
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: key is longer than %d bytes", ErrInvalidKey, maxKeyLength)
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
