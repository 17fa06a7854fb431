// Package pathfind provides grid-constrained shortest-path search shared by
// sims and vehicles. Searches are stateless and deterministic.
package pathfind

import (
	"container/heap"

	"github.com/talgya/tilecity/internal/world"
)

// Path is an ordered route from (exclusive) start to (inclusive) goal.
// An empty path means no route, or start == goal.
type Path []world.Position

// Passable decides whether a search may step onto a tile.
type Passable func(p world.Position, kind world.TileKind) bool

// Search finds a shortest 4-connected path from start to goal that only
// steps onto tiles whose kind is in traversable. The start tile itself
// need not be traversable.
func Search(g world.Reader, start, goal world.Position, traversable world.KindSet) Path {
	return SearchFunc(g, start, goal, func(_ world.Position, kind world.TileKind) bool {
		return traversable.Has(kind)
	})
}

// SearchFunc is Search with an arbitrary passability predicate.
// Best-first on cost-so-far plus Manhattan distance to goal; neighbors are
// expanded up, down, left, right and equal priorities pop in push order.
func SearchFunc(g world.Reader, start, goal world.Position, passable Passable) Path {
	if start == goal || !g.InBounds(start) || !g.InBounds(goal) {
		return nil
	}

	open := &openSet{}
	var seq uint64
	push := func(p world.Position, cost int) {
		heap.Push(open, &node{pos: p, cost: cost, priority: cost + world.Manhattan(p, goal), seq: seq})
		seq++
	}

	cameFrom := make(map[world.Position]world.Position)
	best := map[world.Position]int{start: 0}
	push(start, 0)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if cur.cost > best[cur.pos] {
			continue // stale entry, a cheaper route was pushed later
		}
		if cur.pos == goal {
			return reconstruct(cameFrom, start, goal)
		}

		for _, n := range cur.pos.Neighbors() {
			if !g.InBounds(n) || !passable(n, g.Kind(n)) {
				continue
			}
			cost := cur.cost + 1
			if prev, seen := best[n]; seen && cost >= prev {
				continue
			}
			best[n] = cost
			cameFrom[n] = cur.pos
			push(n, cost)
		}
	}
	return nil
}

func reconstruct(cameFrom map[world.Position]world.Position, start, goal world.Position) Path {
	var path Path
	for cur := goal; cur != start; cur = cameFrom[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// node is one open-set entry.
type node struct {
	pos      world.Position
	cost     int
	priority int
	seq      uint64 // insertion order, breaks priority ties
}

// openSet is a min-heap on (priority, seq).
type openSet []*node

func (o openSet) Len() int { return len(o) }

func (o openSet) Less(i, j int) bool {
	if o[i].priority != o[j].priority {
		return o[i].priority < o[j].priority
	}
	return o[i].seq < o[j].seq
}

func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }

func (o *openSet) Push(x any) { *o = append(*o, x.(*node)) }

func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*o = old[:len(old)-1]
	return n
}
