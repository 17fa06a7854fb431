package transport

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/tilecity/internal/pathfind"
	"github.com/talgya/tilecity/internal/world"
)

var (
	ErrInvalidTarget = errors.New("invalid vehicle target")
	ErrNoRoute       = errors.New("no road route")
)

// Fleet is the collection of live vehicles, kept in registration order.
type Fleet struct {
	Speed    float64
	TileSize float64

	vehicles []*Vehicle
	nextID   VehicleID
}

// NewFleet creates an empty fleet whose vehicles move at speed world units
// per tick over tiles tileSize units wide.
func NewFleet(speed, tileSize float64) *Fleet {
	return &Fleet{
		Speed:    speed,
		TileSize: tileSize,
		nextID:   1,
	}
}

// RoadRoute computes a driving route: roads only, except that the
// destination tile itself may be entered. The origin may be any tile.
func RoadRoute(g world.Reader, origin, target world.Position) pathfind.Path {
	return pathfind.SearchFunc(g, origin, target, func(p world.Position, k world.TileKind) bool {
		return k == world.TileRoad || p == target
	})
}

// Spawn creates and registers a vehicle carrying owner from origin to
// target. Out-of-bounds positions are ErrInvalidTarget; a target with no
// road route is ErrNoRoute. Failures are logged and nothing is registered.
func (f *Fleet) Spawn(g world.Reader, owner uint64, origin, target world.Position) (*Vehicle, error) {
	if !g.InBounds(origin) || !g.InBounds(target) {
		slog.Warn("vehicle spawn rejected", "owner", owner, "origin", origin, "target", target, "reason", "out of bounds")
		return nil, fmt.Errorf("spawn %v -> %v: %w", origin, target, ErrInvalidTarget)
	}

	path := RoadRoute(g, origin, target)
	if len(path) == 0 {
		slog.Debug("vehicle spawn has no route", "owner", owner, "origin", origin, "target", target)
		return nil, fmt.Errorf("spawn %v -> %v: %w", origin, target, ErrNoRoute)
	}

	v := NewVehicle(f.nextID, owner, origin, path, f.Speed, f.TileSize)
	f.nextID++
	f.vehicles = append(f.vehicles, v)
	return v, nil
}

// Update advances every vehicle in registration order, removes the dead
// ones, and returns the vehicles that arrived this tick.
func (f *Fleet) Update() []*Vehicle {
	var arrived []*Vehicle
	for _, v := range f.vehicles {
		if v.Update() {
			arrived = append(arrived, v)
		}
	}

	live := f.vehicles[:0]
	for _, v := range f.vehicles {
		if v.Alive {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(f.vehicles); i++ {
		f.vehicles[i] = nil
	}
	f.vehicles = live
	return arrived
}

// Vehicles returns the live vehicles in registration order.
func (f *Fleet) Vehicles() []*Vehicle {
	return f.vehicles
}

// Len returns the number of live vehicles.
func (f *Fleet) Len() int {
	return len(f.vehicles)
}
