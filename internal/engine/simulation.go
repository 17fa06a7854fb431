// Simulation ties together all city systems and runs them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/tilecity/internal/agents"
	"github.com/talgya/tilecity/internal/claims"
	"github.com/talgya/tilecity/internal/economy"
	"github.com/talgya/tilecity/internal/transport"
	"github.com/talgya/tilecity/internal/world"
)

const maxEvents = 1000

// Event is a notable occurrence in the city.
type Event struct {
	Tick        uint64 `json:"tick" db:"tick"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"` // "spawn", "agent", "growth", "transport", "tool", "economy"
}

// Simulation holds the complete city state. All access goes through its
// methods, which serialize the tick against tools and observers.
type Simulation struct {
	mu sync.RWMutex

	cfg     Config
	runID   string
	grid    *world.Grid
	sims    []*agents.Sim
	simIdx  map[agents.SimID]*agents.Sim
	fleet   *transport.Fleet
	claims  *claims.Registry
	econ    *economy.Economy
	spawner *agents.Spawner
	rng     *rand.Rand // Zone growth

	events   []Event // Recent events, oldest first
	unsaved  []Event // Events not yet handed to storage
	lastTick uint64
}

// NewSimulation creates a simulation over grid. The first InitialSims
// sims are spawned on boundary roads right away.
func NewSimulation(cfg Config, grid *world.Grid) *Simulation {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Simulation{
		cfg:     cfg,
		runID:   uuid.NewString(),
		grid:    grid,
		simIdx:  make(map[agents.SimID]*agents.Sim),
		fleet:   transport.NewFleet(cfg.VehicleSpeed, cfg.TileSize),
		claims:  claims.NewRegistry(),
		econ:    economy.New(cfg.StartingMoney, cfg.TaxRate),
		spawner: agents.NewSpawner(seed),
		rng:     rand.New(rand.NewSource(seed + 100)),
	}
	for i := 0; i < cfg.InitialSims; i++ {
		if !s.spawnSim(0) {
			break
		}
	}
	return s
}

// cityEnv is the view of the city a sim acts on.
type cityEnv struct{ s *Simulation }

func (e cityEnv) Grid() world.Reader       { return e.s.grid }
func (e cityEnv) Claims() *claims.Registry { return e.s.claims }

func (e cityEnv) SpawnVehicle(owner agents.SimID, origin, target world.Position) (*transport.Vehicle, error) {
	v, err := e.s.fleet.Spawn(e.s.grid, uint64(owner), origin, target)
	if err != nil {
		return nil, err
	}
	slog.Debug("vehicle dispatched", "vehicle", v.ID, "sim", owner, "from", origin, "to", target)
	return v, nil
}

// Step runs one tick: economy, zone growth, sims in creation order,
// vehicles in registration order, arrivals, then the periodic spawn.
func (s *Simulation) Step(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTick = tick

	s.econ.Update(s.grid)
	if s.cfg.IncomeEveryTicks > 0 && tick%s.cfg.IncomeEveryTicks == 0 {
		if paid := s.econ.Payout(); paid > 0 {
			slog.Debug("tax income collected", "tick", tick, "amount", paid, "money", s.econ.Money)
		}
	}

	for _, g := range world.GrowZones(s.grid, s.econ.Demand, s.rng, s.cfg.GrowthProbability) {
		s.emit(Event{
			Tick:        tick,
			Description: fmt.Sprintf("a %s grew at %s", g.Kind, g.Pos),
			Category:    "growth",
		})
	}

	env := cityEnv{s}
	params := s.cfg.AgentParams()
	for _, sim := range s.sims {
		for _, desc := range sim.Update(env, params) {
			s.emit(Event{Tick: tick, Description: desc, Category: "agent"})
		}
	}

	for _, v := range s.fleet.Update() {
		s.deliver(tick, v)
	}

	if s.cfg.SpawnEveryTicks > 0 && tick%s.cfg.SpawnEveryTicks == 0 {
		s.spawnSim(tick)
	}
}

// deliver hands an arrived vehicle's passenger back to its sim.
func (s *Simulation) deliver(tick uint64, v *transport.Vehicle) {
	sim, ok := s.simIdx[agents.SimID(v.Owner)]
	if !ok || sim.Vehicle != v {
		slog.Warn("vehicle arrived without its passenger", "vehicle", v.ID, "owner", v.Owner)
		return
	}
	sim.Disembark(v)
	s.emit(Event{
		Tick:        tick,
		Description: fmt.Sprintf("sim %d arrived by car at %s", sim.ID, sim.Pos),
		Category:    "transport",
	})
}

func (s *Simulation) spawnSim(tick uint64) bool {
	sim, ok := s.spawner.SpawnAtEdge(s.grid, tick)
	if !ok {
		return false
	}
	s.sims = append(s.sims, sim)
	s.simIdx[sim.ID] = sim
	s.emit(Event{
		Tick:        tick,
		Description: fmt.Sprintf("sim %d arrived in town at %s", sim.ID, sim.Pos),
		Category:    "spawn",
	})
	return true
}

func (s *Simulation) emit(e Event) {
	slog.Debug("event", "tick", e.Tick, "category", e.Category, "description", e.Description)
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	s.unsaved = append(s.unsaved, e)
	if len(s.unsaved) > maxEvents {
		s.unsaved = s.unsaved[len(s.unsaved)-maxEvents:]
	}
}

// RunID identifies this run of the simulation.
func (s *Simulation) RunID() string {
	return s.runID
}

// Config returns the configuration the simulation runs with.
func (s *Simulation) Config() Config {
	return s.cfg
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// SetLastTick restores the tick counter after a load.
func (s *Simulation) SetLastTick(tick uint64) {
	s.mu.Lock()
	s.lastTick = tick
	s.mu.Unlock()
}

// Status is a summary of the city at one tick.
type Status struct {
	RunID      string         `json:"run_id"`
	Tick       uint64         `json:"tick"`
	Rows       int            `json:"rows"`
	Cols       int            `json:"cols"`
	Sims       int            `json:"sims"`
	Vehicles   int            `json:"vehicles"`
	Homes      int            `json:"claimed_homes"`
	Jobs       int            `json:"claimed_jobs"`
	Population int            `json:"population"`
	JobSlots   int            `json:"job_slots"`
	Money      int64          `json:"money"`
	Income     int64          `json:"income"`
	Happiness  float64        `json:"happiness"`
	Demand     world.Demand   `json:"demand"`
	States     map[string]int `json:"states"`
}

// Status returns the current summary.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, cols := s.grid.Dims()
	states := make(map[string]int)
	for _, sim := range s.sims {
		states[sim.State.String()]++
	}
	return Status{
		RunID:      s.runID,
		Tick:       s.lastTick,
		Rows:       rows,
		Cols:       cols,
		Sims:       len(s.sims),
		Vehicles:   s.fleet.Len(),
		Homes:      s.claims.Count(claims.Home),
		Jobs:       s.claims.Count(claims.Job),
		Population: s.econ.Population,
		JobSlots:   s.econ.Jobs,
		Money:      s.econ.Money,
		Income:     s.econ.Income,
		Happiness:  s.econ.Happiness,
		Demand:     s.econ.Demand,
		States:     states,
	}
}

// Economy returns a copy of the books.
func (s *Simulation) Economy() economy.Economy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.econ
}

// GridLabels returns the map as tile labels, row by row.
func (s *Simulation) GridLabels() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.Labels()
}

// GridCopy returns a copy of the map.
func (s *Simulation) GridCopy() *world.Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.Clone()
}

// TileAt returns the kind of the tile at p.
func (s *Simulation) TileAt(p world.Position) (world.TileKind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.Get(p.Row, p.Col)
}

// ReplaceGrid swaps in a loaded map of the same dimensions. Sims keep
// their claims; those whose buildings vanished find out on their next
// commute.
func (s *Simulation) ReplaceGrid(labels [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.grid.Replace(labels); err != nil {
		return fmt.Errorf("replace grid: %w", err)
	}
	s.emit(Event{Tick: s.lastTick, Description: "map loaded", Category: "tool"})
	return nil
}

// Sims returns copies of every sim in creation order.
func (s *Simulation) Sims() []agents.Sim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agents.Sim, len(s.sims))
	for i, sim := range s.sims {
		out[i] = *sim
		out[i].Path = append(out[i].Path[:0:0], sim.Path...)
	}
	return out
}

// Sim returns a copy of one sim.
func (s *Simulation) Sim(id agents.SimID) (agents.Sim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sim, ok := s.simIdx[id]
	if !ok {
		return agents.Sim{}, false
	}
	out := *sim
	out.Path = append(out.Path[:0:0], sim.Path...)
	return out, true
}

// Vehicles returns copies of the live vehicles in registration order.
func (s *Simulation) Vehicles() []transport.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.fleet.Vehicles()
	out := make([]transport.Vehicle, len(vs))
	for i, v := range vs {
		out[i] = *v
	}
	return out
}

// Claims returns the claimed home and job positions.
func (s *Simulation) Claims() (homes, jobs []world.Position) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.Claimed(claims.Home), s.claims.Claimed(claims.Job)
}

// RecentEvents returns up to limit of the newest events, newest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out
}

// DrainEvents returns the events recorded since the last drain.
func (s *Simulation) DrainEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.unsaved
	s.unsaved = nil
	return out
}
