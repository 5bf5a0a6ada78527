// Package worldmap provides the tile grid the arena is played on, obstacle
// generation, and the compact binary map format.
package worldmap

// TileType marks a tile as walkable or not.
type TileType uint8

const (
	Passable TileType = 0
	Blocked  TileType = 1
)

// MaxWeight is the largest per-tile movement cost the binary format can carry.
const MaxWeight = 63

// Tile is a single grid cell. Weight 0 means the default cost of 1.
type Tile struct {
	Type   TileType `json:"type"`
	Weight uint8    `json:"weight,omitempty"`
}

// Cost returns the movement cost of stepping onto this tile.
func (t Tile) Cost() int {
	if t.Weight == 0 {
		return 1
	}
	return int(t.Weight)
}

// Waypoint is an integer grid coordinate.
type Waypoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ManhattanDist returns the L1 distance between two waypoints.
func ManhattanDist(a, b Waypoint) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// TileMap is a fixed-size grid indexed tiles[y][x]. Created once at world
// init and never resized.
type TileMap struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Tiles  [][]Tile `json:"tiles"`
}

// New creates an all-passable map of the given dimensions.
func New(width, height int) *TileMap {
	tiles := make([][]Tile, height)
	for y := range tiles {
		tiles[y] = make([]Tile, width)
	}
	return &TileMap{Width: width, Height: height, Tiles: tiles}
}

// InBounds reports whether (x,y) lies on the map.
func (m *TileMap) InBounds(x, y int) bool {
	return x >= 0 && x < m.Width && y >= 0 && y < m.Height
}

// IsPassable reports whether (x,y) is on the map and walkable.
func (m *TileMap) IsPassable(x, y int) bool {
	return m.InBounds(x, y) && m.Tiles[y][x].Type == Passable
}

// At returns the tile at (x,y). Caller must ensure bounds.
func (m *TileMap) At(x, y int) Tile {
	return m.Tiles[y][x]
}

// Set replaces the tile at (x,y). Out-of-bounds writes are ignored.
func (m *TileMap) Set(x, y int, t Tile) {
	if m.InBounds(x, y) {
		m.Tiles[y][x] = t
	}
}

// PassableCount returns the number of walkable tiles.
func (m *TileMap) PassableCount() int {
	n := 0
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Tiles[y][x].Type == Passable {
				n++
			}
		}
	}
	return n
}
