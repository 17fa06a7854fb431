package agents

import (
	"math/rand"

	"github.com/talgya/tilecity/internal/world"
)

// Spawner creates sims at the city's road entrances.
type Spawner struct {
	rng    *rand.Rand
	nextID SimID
}

// NewSpawner creates a sim spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
	}
}

// NextID returns the ID the next sim will get.
func (s *Spawner) NextID() SimID {
	return s.nextID
}

// SpawnAtEdge creates a sim on a random road tile of the map boundary.
// It returns false when the boundary has no road.
func (s *Spawner) SpawnAtEdge(g *world.Grid, tick uint64) (*Sim, bool) {
	roads := g.BoundaryPositions(world.TileRoad)
	if len(roads) == 0 {
		return nil, false
	}
	pos := roads[s.rng.Intn(len(roads))]
	return s.Spawn(pos, tick), true
}

// Spawn creates a sim at pos in the seeking_home state.
func (s *Spawner) Spawn(pos world.Position, tick uint64) *Sim {
	id := s.nextID
	s.nextID++
	return &Sim{
		ID:       id,
		Pos:      pos,
		State:    StateSeekingHome,
		BornTick: tick,
	}
}
