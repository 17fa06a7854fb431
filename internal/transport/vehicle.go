// Package transport animates vehicles along precomputed road routes.
// A vehicle moves in continuous world units; it reports its arrival once
// and the simulation hands the passenger back to its sim.
package transport

import (
	"math"

	"github.com/talgya/tilecity/internal/pathfind"
	"github.com/talgya/tilecity/internal/world"
)

// VehicleID is a unique identifier for a vehicle.
type VehicleID uint64

// Vehicle is a point-to-point mover following a path of tiles.
type Vehicle struct {
	ID    VehicleID `json:"id"`
	Owner uint64    `json:"owner"` // Sim riding in the vehicle
	Kind  string    `json:"kind"`

	// World-space position. A tile (row, col) sits at (col*TileSize, row*TileSize).
	X float64 `json:"x"`
	Y float64 `json:"y"`

	Path     pathfind.Path `json:"path"`
	Cursor   int           `json:"cursor"` // Index of the waypoint being driven to
	Speed    float64       `json:"speed"`  // World units per tick
	TileSize float64       `json:"tile_size"`

	Alive   bool `json:"alive"`
	Arrived bool `json:"arrived"`
}

// NewVehicle places a vehicle on origin's corner. An empty path, or one
// holding a waypoint that cannot be a tile, yields a vehicle that is dead
// from the start and never arrives.
func NewVehicle(id VehicleID, owner uint64, origin world.Position, path pathfind.Path, speed, tileSize float64) *Vehicle {
	v := &Vehicle{
		ID:       id,
		Owner:    owner,
		Kind:     "car",
		X:        float64(origin.Col) * tileSize,
		Y:        float64(origin.Row) * tileSize,
		Path:     path,
		Speed:    speed,
		TileSize: tileSize,
		Alive:    validPath(path),
	}
	return v
}

func validPath(path pathfind.Path) bool {
	if len(path) == 0 {
		return false
	}
	for _, p := range path {
		if p.Row < 0 || p.Col < 0 {
			return false
		}
	}
	return true
}

// Update advances the vehicle one tick toward its current waypoint. When
// less than Speed remains it snaps onto the waypoint and moves the cursor
// on. It returns true on the single tick the last waypoint is reached.
// Dead vehicles do not move.
func (v *Vehicle) Update() bool {
	if !v.Alive {
		return false
	}
	if v.Cursor >= len(v.Path) {
		v.Alive = false
		return false
	}

	tile := v.Path[v.Cursor]
	targetX := float64(tile.Col) * v.TileSize
	targetY := float64(tile.Row) * v.TileSize

	dx := targetX - v.X
	dy := targetY - v.Y
	dist := math.Hypot(dx, dy)

	if dist < v.Speed {
		v.X = targetX
		v.Y = targetY
		v.Cursor++
		if v.Cursor >= len(v.Path) {
			v.Alive = false
			v.Arrived = true
			return true
		}
		return false
	}

	v.X += v.Speed * dx / dist
	v.Y += v.Speed * dy / dist
	return false
}

// Destination returns the final waypoint.
func (v *Vehicle) Destination() (world.Position, bool) {
	if len(v.Path) == 0 {
		return world.Position{}, false
	}
	return v.Path[len(v.Path)-1], true
}

// Tile returns the tile the vehicle currently sits over.
func (v *Vehicle) Tile() world.Position {
	if v.TileSize <= 0 {
		return world.Position{}
	}
	return world.Position{
		Row: int(math.Round(v.Y / v.TileSize)),
		Col: int(math.Round(v.X / v.TileSize)),
	}
}
