// Package pathfind provides A* routing over the 4-connected tile grid.
package pathfind

import (
	"container/heap"

	"github.com/dkettler/gridroyale/internal/worldmap"
)

// Path is an ordered run of 4-adjacent passable waypoints from start to goal,
// with the summed step cost (cost of each destination tile, default 1).
type Path struct {
	Waypoints []worldmap.Waypoint
	Cost      int
}

type node struct {
	pos    worldmap.Waypoint
	g      int // cost from start
	f      int // g + heuristic
	seq    int // insertion order, breaks f ties deterministically
	parent *node
	index  int
}

type openHeap []*node

func (h openHeap) Len() int { return len(h) }

func (h openHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}

func (h openHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *openHeap) Push(x any) {
	n := x.(*node)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *openHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	return n
}

var steps = [4]worldmap.Waypoint{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}

// Find returns the cheapest 4-connected path from start to goal, or nil when
// either endpoint is unusable or no path exists. A degenerate request where
// start equals goal returns the trivial path without a passability check.
func Find(m *worldmap.TileMap, start, goal worldmap.Waypoint) *Path {
	if start == goal {
		return &Path{Waypoints: []worldmap.Waypoint{start}, Cost: 0}
	}
	if !m.IsPassable(start.X, start.Y) || !m.IsPassable(goal.X, goal.Y) {
		return nil
	}

	open := &openHeap{}
	heap.Init(open)
	best := make(map[worldmap.Waypoint]*node)
	closed := make(map[worldmap.Waypoint]bool)
	seq := 0

	startNode := &node{pos: start, g: 0, f: worldmap.ManhattanDist(start, goal)}
	heap.Push(open, startNode)
	best[start] = startNode

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if cur.pos == goal {
			return rebuild(cur)
		}
		closed[cur.pos] = true

		for _, d := range steps {
			next := worldmap.Waypoint{X: cur.pos.X + d.X, Y: cur.pos.Y + d.Y}
			if closed[next] || !m.IsPassable(next.X, next.Y) {
				continue
			}
			g := cur.g + m.At(next.X, next.Y).Cost()
			if existing, ok := best[next]; ok {
				if g >= existing.g {
					continue
				}
				existing.g = g
				existing.f = g + worldmap.ManhattanDist(next, goal)
				existing.parent = cur
				heap.Fix(open, existing.index)
				continue
			}
			seq++
			n := &node{
				pos:    next,
				g:      g,
				f:      g + worldmap.ManhattanDist(next, goal),
				seq:    seq,
				parent: cur,
			}
			best[next] = n
			heap.Push(open, n)
		}
	}
	return nil
}

func rebuild(goal *node) *Path {
	length := 0
	for n := goal; n != nil; n = n.parent {
		length++
	}
	wps := make([]worldmap.Waypoint, length)
	for n := goal; n != nil; n = n.parent {
		length--
		wps[length] = n.pos
	}
	return &Path{Waypoints: wps, Cost: goal.g}
}
