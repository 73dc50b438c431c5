package spritegen

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
)

// One seed each for hue, saturation and lightness
const NumColorChannels = 3

type Digest [blake2b.Size256]byte

// Hasher maps text to a stable 256-bit digest.
func Hasher(text string) (Digest, error) {
	if text == "" {
		return Digest{}, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	if !utf8.ValidString(text) {
		return Digest{}, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInput)
	}
	return blake2b.Sum256([]byte(text)), nil
}

// GetSeeds splits a digest into the sprite seed (first word) and one color seed per
// channel (the remaining words). Seeds are always non-negative.
func GetSeeds(d Digest) (int64, []int64) {
	word := func(i int) int64 {
		return int64(binary.BigEndian.Uint64(d[i*8:]) & math.MaxInt64)
	}
	colorSeeds := make([]int64, NumColorChannels)
	for i := range colorSeeds {
		colorSeeds[i] = word(i + 1)
	}
	return word(0), colorSeeds
}

func DeriveSeed(text string) (int64, []int64, error) {
	d, err := Hasher(text)
	if err != nil {
		return 0, nil, err
	}
	spriteSeed, colorSeeds := GetSeeds(d)
	return spriteSeed, colorSeeds, nil
}
