// Obstacle generation for arena maps: seeded random scatter, coherent-noise
// fields, border walls, and rectangular blocks.
package worldmap

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// LCG is the linear congruential generator the map generator uses so that a
// given seed always produces the same obstacle layout.
type LCG struct {
	state int64
}

// NewLCG seeds a generator. The modulus keeps state small; any seed works.
func NewLCG(seed int64) *LCG {
	if seed < 0 {
		seed = -seed
	}
	return &LCG{state: seed % 233280}
}

// Next returns a pseudo-random float64 in [0, 1).
func (g *LCG) Next() float64 {
	g.state = (g.state*9301 + 49297) % 233280
	return float64(g.state) / 233280
}

// AddRandomObstacles independently marks each tile Blocked with the given
// probability. The same seed yields the same layout.
func AddRandomObstacles(m *TileMap, density float64, seed int64) {
	if density <= 0 {
		return
	}
	rng := NewLCG(seed)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if rng.Next() < density {
				m.Tiles[y][x].Type = Blocked
			}
		}
	}
}

// noiseScale controls the feature size of noise-generated obstacle clumps.
const noiseScale = 0.18

// AddNoiseObstacles blocks tiles where a smooth opensimplex field falls below
// a density-derived threshold, producing clustered walls instead of scatter.
func AddNoiseObstacles(m *TileMap, density float64, seed int64) {
	if density <= 0 {
		return
	}
	noise := opensimplex.NewNormalized(seed)
	// Normalized noise is uniform enough over a grid that the density maps
	// directly to a threshold.
	threshold := density
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			v := noise.Eval2(float64(x)*noiseScale, float64(y)*noiseScale)
			if v < threshold {
				m.Tiles[y][x].Type = Blocked
			}
		}
	}
}

// AddBorderWalls blocks every tile on the outer edge of the map.
func AddBorderWalls(m *TileMap) {
	for x := 0; x < m.Width; x++ {
		m.Tiles[0][x].Type = Blocked
		m.Tiles[m.Height-1][x].Type = Blocked
	}
	for y := 0; y < m.Height; y++ {
		m.Tiles[y][0].Type = Blocked
		m.Tiles[y][m.Width-1].Type = Blocked
	}
}

// AddRectangle blocks a w×h rectangle anchored at (x,y), clipped to bounds.
func AddRectangle(m *TileMap, x, y, w, h int) {
	for ty := y; ty < y+h; ty++ {
		for tx := x; tx < x+w; tx++ {
			if m.InBounds(tx, ty) {
				m.Tiles[ty][tx].Type = Blocked
			}
		}
	}
}
