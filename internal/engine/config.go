package engine

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/tilecity/internal/agents"
	"github.com/talgya/tilecity/internal/world"
)

// Config holds the tunables of a city. Zero-valued YAML keys keep their
// defaults.
type Config struct {
	Rows    int   `yaml:"rows"`
	Cols    int   `yaml:"cols"`
	Seed    int64 `yaml:"seed"` // 0 = random
	PreZone bool  `yaml:"prezone"`

	TickIntervalMS     int    `yaml:"tick_interval_ms"`
	SpawnEveryTicks    uint64 `yaml:"spawn_every_ticks"`
	InitialSims        int    `yaml:"initial_sims"`
	IncomeEveryTicks   uint64 `yaml:"income_every_ticks"`
	AutosaveEveryTicks uint64 `yaml:"autosave_every_ticks"`

	WorkTicks       int     `yaml:"work_ticks"`
	IdleTicks       int     `yaml:"idle_ticks"`
	CommuteDistance int     `yaml:"commute_distance"`
	WalkSpeed       float64 `yaml:"walk_speed"`
	VehicleSpeed    float64 `yaml:"vehicle_speed"`
	TileSize        float64 `yaml:"tile_size"`

	GrowthProbability float64   `yaml:"growth_probability"`
	TaxRate           float64   `yaml:"tax_rate"`
	StartingMoney     int64     `yaml:"starting_money"`
	Costs             ToolCosts `yaml:"costs"`
}

// ToolCosts is the price of each paid tool.
type ToolCosts struct {
	Road    int64 `yaml:"road"`
	House   int64 `yaml:"house"`
	Factory int64 `yaml:"factory"`
}

// DefaultConfig returns the standard 50×37 city running at 60 ticks per second.
func DefaultConfig() Config {
	gen := world.DefaultGenConfig()
	p := agents.DefaultParams()
	return Config{
		Rows:               gen.Rows,
		Cols:               gen.Cols,
		TickIntervalMS:     16,
		SpawnEveryTicks:    300,
		InitialSims:        0,
		IncomeEveryTicks:   180,
		AutosaveEveryTicks: 3600,
		WorkTicks:          p.WorkTicks,
		IdleTicks:          p.IdleTicks,
		CommuteDistance:    p.CommuteDistance,
		WalkSpeed:          p.WalkSpeed,
		VehicleSpeed:       1.0,
		TileSize:           16,
		GrowthProbability:  0.01,
		TaxRate:            0.10,
		StartingMoney:      1000,
		Costs: ToolCosts{
			Road:    10,
			House:   25,
			Factory: 40,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Rows < 2 || c.Cols < 2 {
		errs = append(errs, fmt.Errorf("map must be at least 2x2, got %dx%d", c.Rows, c.Cols))
	}
	if c.TickIntervalMS <= 0 {
		errs = append(errs, errors.New("tick_interval_ms must be positive"))
	}
	if c.WalkSpeed <= 0 || c.VehicleSpeed <= 0 || c.TileSize <= 0 {
		errs = append(errs, errors.New("walk_speed, vehicle_speed and tile_size must be positive"))
	}
	if c.WorkTicks <= 0 || c.IdleTicks <= 0 {
		errs = append(errs, errors.New("work_ticks and idle_ticks must be positive"))
	}
	if c.GrowthProbability < 0 || c.GrowthProbability > 1 {
		errs = append(errs, fmt.Errorf("growth_probability %v outside [0,1]", c.GrowthProbability))
	}
	if c.TaxRate < 0 {
		errs = append(errs, errors.New("tax_rate must not be negative"))
	}
	if c.InitialSims < 0 {
		errs = append(errs, errors.New("initial_sims must not be negative"))
	}
	return errors.Join(errs...)
}

// TickInterval returns the base duration of one tick.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// AgentParams returns the sim routine tunables.
func (c Config) AgentParams() agents.Params {
	return agents.Params{
		WalkSpeed:       c.WalkSpeed,
		WorkTicks:       c.WorkTicks,
		IdleTicks:       c.IdleTicks,
		CommuteDistance: c.CommuteDistance,
	}
}

// GenConfig returns the map generation settings.
func (c Config) GenConfig() world.GenConfig {
	gen := world.DefaultGenConfig()
	gen.Rows = c.Rows
	gen.Cols = c.Cols
	gen.Seed = c.Seed
	gen.PreZone = c.PreZone
	return gen
}
