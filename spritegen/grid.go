package spritegen

import "math/rand/v2"

const (
	gridW = 8
	gridH = 8
)

// Grid stores live (1) and dead (0) cells in row-major order. Unlike a Game of Life
// board it does not wrap: cells past the edge count as dead.
type Grid struct {
	W, H int
	cur  []uint8
	nxt  []uint8
}

func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, cur: make([]uint8, w*h), nxt: make([]uint8, w*h)}
}

// seedGrid fills the left half from rng and mirrors it onto the right half.
func seedGrid(rng *rand.Rand) *Grid {
	g := NewGrid(gridW, gridH)
	half := (g.W + 1) / 2
	for y := 0; y < g.H; y++ {
		for x := 0; x < half; x++ {
			v := uint8(rng.IntN(2))
			g.Set(x, y, v)
			g.Set(g.W-1-x, y, v)
		}
	}
	return g
}

func (g *Grid) Cells() []uint8 { return g.cur }

func (g *Grid) Alive(x, y int) bool {
	if x < 0 || y < 0 || x >= g.W || y >= g.H {
		return false
	}
	return g.cur[y*g.W+x] == 1
}

func (g *Grid) Set(x, y int, v uint8) {
	g.cur[y*g.W+x] = v
}

func (g *Grid) Population() int {
	n := 0
	for _, c := range g.cur {
		n += int(c)
	}
	return n
}

func (g *Grid) neighbors(x, y int) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if g.Alive(x+dx, y+dy) {
				n++
			}
		}
	}
	return n
}

// Step advances the grid by one generation. With d the fraction of the 8 neighbors
// that are alive: a dead cell is born when d <= extinction, and a live cell survives
// when extinction < d <= survival.
func (g *Grid) Step(extinction, survival float64) {
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			d := float64(g.neighbors(x, y)) / 8
			idx := y*g.W + x
			g.nxt[idx] = 0
			if g.cur[idx] == 1 {
				if d > extinction && d <= survival {
					g.nxt[idx] = 1
				}
			} else if d <= extinction {
				g.nxt[idx] = 1
			}
		}
	}
	g.cur, g.nxt = g.nxt, g.cur
}
