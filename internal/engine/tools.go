package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/tilecity/internal/world"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTileOccupied      = errors.New("tile occupied")
	ErrNoRoadAccess      = errors.New("no adjacent road")
	ErrUnknownTool       = errors.New("unknown tool")
)

// Tool is a player action on a single tile.
type Tool string

const (
	ToolRoad            Tool = "road"
	ToolHouse           Tool = "house"
	ToolFactory         Tool = "factory"
	ToolZoneResidential Tool = "zone_residential"
	ToolZoneIndustrial  Tool = "zone_industrial"
	ToolBulldozer       Tool = "bulldozer"
)

// Tools lists every tool in toolbar order.
var Tools = []Tool{ToolRoad, ToolHouse, ToolFactory, ToolZoneResidential, ToolZoneIndustrial, ToolBulldozer}

// ParseTool looks a tool up by name.
func ParseTool(name string) (Tool, error) {
	for _, t := range Tools {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnknownTool)
}

// Cost returns what the tool charges under costs.
func (t Tool) Cost(costs ToolCosts) int64 {
	switch t {
	case ToolRoad:
		return costs.Road
	case ToolHouse:
		return costs.House
	case ToolFactory:
		return costs.Factory
	}
	return 0
}

// ApplyTool uses tool on the tile at p. Buildings go on empty land next
// to a road; roads and zones go on empty land; the bulldozer clears any
// tile. Clearing empty land is a no-op.
func (s *Simulation) ApplyTool(tool Tool, p world.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind, err := s.grid.Get(p.Row, p.Col)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", tool, p, err)
	}

	var place world.TileKind
	switch tool {
	case ToolBulldozer:
		if kind == world.TileEmpty {
			return nil
		}
		place = world.TileEmpty
	case ToolRoad:
		place = world.TileRoad
	case ToolHouse:
		place = world.TileHouse
	case ToolFactory:
		place = world.TileFactory
	case ToolZoneResidential:
		place = world.TileZoneResidential
	case ToolZoneIndustrial:
		place = world.TileZoneIndustrial
	default:
		return fmt.Errorf("%q: %w", tool, ErrUnknownTool)
	}

	if tool != ToolBulldozer && kind != world.TileEmpty {
		return fmt.Errorf("%s at %s on %s: %w", tool, p, kind, ErrTileOccupied)
	}
	if (tool == ToolHouse || tool == ToolFactory) && !s.grid.HasAdjacent(p, world.TileRoad) {
		return fmt.Errorf("%s at %s: %w", tool, p, ErrNoRoadAccess)
	}
	cost := tool.Cost(s.cfg.Costs)
	if !s.econ.Spend(cost) {
		return fmt.Errorf("%s costs %d, have %d: %w", tool, cost, s.econ.Money, ErrInsufficientFunds)
	}

	if err := s.grid.Set(p.Row, p.Col, place); err != nil {
		return fmt.Errorf("%s at %s: %w", tool, p, err)
	}
	s.emit(Event{
		Tick:        s.lastTick,
		Description: fmt.Sprintf("%s placed at %s", tool, p),
		Category:    "tool",
	})
	slog.Info("tool applied", "tool", tool, "pos", p, "cost", cost, "money", s.econ.Money)
	return nil
}
