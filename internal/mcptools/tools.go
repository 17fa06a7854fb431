// Package mcptools exposes the running city to MCP clients over stdio.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/talgya/tilecity/internal/engine"
	"github.com/talgya/tilecity/internal/world"
)

// Tools binds MCP tool handlers to a simulation.
type Tools struct {
	sim       *engine.Simulation
	eng       *engine.Engine
	mcpServer *server.MCPServer
}

// New creates the MCP server for sim. eng may be nil, in which case the
// speed tool is not offered.
func New(sim *engine.Simulation, eng *engine.Engine, version string) *Tools {
	t := &Tools{sim: sim, eng: eng}
	t.mcpServer = server.NewMCPServer(
		"tilecity",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`tilecity - a tile-based city simulation

Sims arrive on edge roads, move into the nearest free house, take the
nearest free factory job, then commute: 480 ticks at work, 240 at home.
Zones grow into buildings when the economy demands them.

MAP LEGEND: . empty  # road  H house  F factory  r residential zone  i industrial zone

TOOLS:
- city_status: Tick, money, population, demand, sims by state
- view_map: The whole map as text
- describe_tile: What is at one tile, and who lives or works there
- place_tile: Use a building tool (road, house, factory, zone_residential, zone_industrial, bulldozer)
- list_sims: Sims with their state, home and job
- set_speed: Change the simulation speed (0 pauses)`),
	)
	t.registerTools()
	return t
}

// MCPServer returns the underlying server, for ServeStdio.
func (t *Tools) MCPServer() *server.MCPServer {
	return t.mcpServer
}

// ServeStdio serves MCP on stdin/stdout until the client disconnects.
func (t *Tools) ServeStdio() error {
	return server.ServeStdio(t.mcpServer)
}

func (t *Tools) registerTools() {
	t.mcpServer.AddTool(mcp.Tool{
		Name:        "city_status",
		Description: "Get the current city summary",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, t.handleStatus)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "view_map",
		Description: "Render the city map as text, one line per row",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, t.handleViewMap)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_tile",
		Description: "Describe the tile at a row and column",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: positionProps(),
			Required:   []string{"row", "col"},
		},
	}, t.handleDescribeTile)

	props := positionProps()
	names := make([]string, len(engine.Tools))
	for i, tool := range engine.Tools {
		names[i] = string(tool)
	}
	props["tool"] = map[string]interface{}{
		"type":        "string",
		"enum":        names,
		"description": "Tool to use",
	}
	t.mcpServer.AddTool(mcp.Tool{
		Name:        "place_tile",
		Description: "Use a building tool on a tile. Houses and factories need an adjacent road; roads, houses and factories cost money",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"tool", "row", "col"},
		},
	}, t.handlePlaceTile)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sims",
		Description: "List sims, optionally only those in one state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"state": map[string]interface{}{
					"type":        "string",
					"description": "Filter by state, e.g. working or seeking_home",
				},
			},
		},
	}, t.handleListSims)

	if t.eng != nil {
		t.mcpServer.AddTool(mcp.Tool{
			Name:        "set_speed",
			Description: "Set the simulation speed multiplier; 0 pauses",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"speed": map[string]interface{}{
						"type":        "number",
						"description": "Speed multiplier between 0 and 1000",
					},
				},
				Required: []string{"speed"},
			},
		}, t.handleSetSpeed)
	}
}

func positionProps() map[string]interface{} {
	return map[string]interface{}{
		"row": map[string]interface{}{
			"type":        "integer",
			"description": "Row (0 is the top edge)",
		},
		"col": map[string]interface{}{
			"type":        "integer",
			"description": "Column (0 is the left edge)",
		},
	}
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

func numberArg(args map[string]interface{}, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("missing %s", key)
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

func positionArg(args map[string]interface{}) (world.Position, error) {
	row, err := numberArg(args, "row")
	if err != nil {
		return world.Position{}, err
	}
	col, err := numberArg(args, "col")
	if err != nil {
		return world.Position{}, err
	}
	return world.Pos(int(row), int(col)), nil
}

// Tool handlers

func (t *Tools) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := t.sim.Status()

	var b strings.Builder
	fmt.Fprintf(&b, "Tick %d (run %s)\n", st.Tick, st.RunID)
	fmt.Fprintf(&b, "Map: %dx%d\n", st.Rows, st.Cols)
	fmt.Fprintf(&b, "Money: $%d (+$%d pending)\n", st.Money, st.Income)
	fmt.Fprintf(&b, "Population: %d  Jobs: %d  Happiness: %.0f%%\n", st.Population, st.JobSlots, st.Happiness*100)
	fmt.Fprintf(&b, "Demand: residential=%v industrial=%v\n", st.Demand.Residential, st.Demand.Industrial)
	fmt.Fprintf(&b, "Sims: %d  Vehicles: %d  Homes claimed: %d  Jobs claimed: %d\n", st.Sims, st.Vehicles, st.Homes, st.Jobs)

	states := make([]string, 0, len(st.States))
	for s := range st.States {
		states = append(states, s)
	}
	sort.Strings(states)
	for _, s := range states {
		fmt.Fprintf(&b, "  %s: %d\n", s, st.States[s])
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Tools) handleViewMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(t.sim.GridCopy().Render()), nil
}

func (t *Tools) handleDescribeTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pos, err := positionArg(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := t.sim.TileAt(pos)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tile %s: %s\n", pos, kind)
	for _, sim := range t.sim.Sims() {
		switch {
		case sim.Home != nil && *sim.Home == pos:
			fmt.Fprintf(&b, "- home of sim %d (%s)\n", sim.ID, sim.State)
		case sim.Job != nil && *sim.Job == pos:
			fmt.Fprintf(&b, "- workplace of sim %d (%s)\n", sim.ID, sim.State)
		case sim.Pos == pos:
			fmt.Fprintf(&b, "- sim %d is here (%s)\n", sim.ID, sim.State)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Tools) handlePlaceTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	name, _ := args["tool"].(string)
	tool, err := engine.ParseTool(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := positionArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := t.sim.ApplyTool(tool, pos); err != nil {
		msg := err.Error()
		switch {
		case errors.Is(err, engine.ErrNoRoadAccess):
			msg += " (build a road next to it first)"
		case errors.Is(err, engine.ErrInsufficientFunds):
			msg += " (wait for tax income)"
		}
		return mcp.NewToolResultError(msg), nil
	}
	kind, _ := t.sim.TileAt(pos)
	return mcp.NewToolResultText(fmt.Sprintf("Tile %s is now %s. Money: $%d", pos, kind, t.sim.Economy().Money)), nil
}

func (t *Tools) handleListSims(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, _ := arguments(request)["state"].(string)

	var b strings.Builder
	n := 0
	for _, sim := range t.sim.Sims() {
		if state != "" && sim.State.String() != state {
			continue
		}
		n++
		fmt.Fprintf(&b, "- sim %d at %s: %s", sim.ID, sim.Pos, sim.State)
		if sim.Home != nil {
			fmt.Fprintf(&b, ", home %s", *sim.Home)
		}
		if sim.Job != nil {
			fmt.Fprintf(&b, ", job %s", *sim.Job)
		}
		if sim.Riding {
			b.WriteString(", driving")
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(fmt.Sprintf("Sims (%d):\n%s", n, b.String())), nil
}

func (t *Tools) handleSetSpeed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	speed, err := numberArg(arguments(request), "speed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if speed < 0 || speed > 1000 {
		return mcp.NewToolResultError("speed must be 0-1000"), nil
	}
	t.eng.SetSpeed(speed)
	return mcp.NewToolResultText(fmt.Sprintf("Speed set to %g", speed)), nil
}
