package sprites

import (
	"bytes"

	"github.com/oxtoacart/bpool"

	"github.com/maxhully/sprites/spritegen"
)

// Renderer encodes sprites into buffers from a pool. Encoding to a buffer first
// means an encoder error never leaves half an image in a response or a store.
type Renderer struct {
	bufpool *bpool.BufferPool
}

func NewRenderer() *Renderer {
	return &Renderer{bufpool: bpool.NewBufferPool(48)}
}

// Render encodes s and hands the bytes to use. The buffer goes back to the pool when
// use returns, so use must not hold on to it.
func (r *Renderer) Render(s *spritegen.Sprite, f spritegen.Format, use func(buf *bytes.Buffer) error) error {
	buf := r.bufpool.Get()
	defer r.bufpool.Put(buf)
	if err := s.Encode(buf, f); err != nil {
		return err
	}
	return use(buf)
}
