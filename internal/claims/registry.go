// Package claims tracks which houses and jobs are taken, so that no two
// sims move into the same house or work the same factory.
package claims

import (
	"sort"

	"github.com/talgya/tilecity/internal/world"
)

// Kind is the category of a claim.
type Kind uint8

const (
	Home Kind = iota
	Job
)

// String returns "home" or "job".
func (k Kind) String() string {
	if k == Job {
		return "job"
	}
	return "home"
}

// Tile returns the tile kind that satisfies a claim of this kind.
func (k Kind) Tile() world.TileKind {
	if k == Job {
		return world.TileFactory
	}
	return world.TileHouse
}

// Registry holds the claimed positions per kind. Claims only leave the
// registry through Release.
type Registry struct {
	homes map[world.Position]bool
	jobs  map[world.Position]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		homes: make(map[world.Position]bool),
		jobs:  make(map[world.Position]bool),
	}
}

func (r *Registry) set(kind Kind) map[world.Position]bool {
	if kind == Job {
		return r.jobs
	}
	return r.homes
}

// Claim marks p as claimed under kind. It returns false if p was already
// claimed, leaving the existing claim in place.
func (r *Registry) Claim(kind Kind, p world.Position) bool {
	s := r.set(kind)
	if s[p] {
		return false
	}
	s[p] = true
	return true
}

// IsClaimed reports whether p is claimed under kind.
func (r *Registry) IsClaimed(kind Kind, p world.Position) bool {
	return r.set(kind)[p]
}

// Release removes a claim. Releasing an unclaimed position is a no-op.
func (r *Registry) Release(kind Kind, p world.Position) {
	delete(r.set(kind), p)
}

// Count returns the number of claims of a kind.
func (r *Registry) Count(kind Kind) int {
	return len(r.set(kind))
}

// Claimed returns the claimed positions of a kind in row-major order.
func (r *Registry) Claimed(kind Kind) []world.Position {
	s := r.set(kind)
	out := make([]world.Position, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// FindNearestUnclaimed searches breadth-first from start across every tile,
// walkable or not, for the closest tile matching kind that is not claimed.
// Neighbors are discovered up, down, left, right, so ties resolve the same
// way on every call.
func FindNearestUnclaimed(g world.Reader, r *Registry, kind Kind, start world.Position) (world.Position, bool) {
	if !g.InBounds(start) {
		return world.Position{}, false
	}
	want := kind.Tile()

	visited := map[world.Position]bool{start: true}
	queue := []world.Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if g.Kind(cur) == want && !r.IsClaimed(kind, cur) {
			return cur, true
		}
		for _, n := range cur.Neighbors() {
			if g.InBounds(n) && !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return world.Position{}, false
}
