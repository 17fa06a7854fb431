// Package agents provides the sim data model and its daily routine:
// find a house, move in, find a job, then commute between the two.
package agents

import (
	"github.com/talgya/tilecity/internal/pathfind"
	"github.com/talgya/tilecity/internal/transport"
	"github.com/talgya/tilecity/internal/world"
)

// SimID is a unique identifier for a sim.
type SimID uint64

// State is the step of the routine a sim is in.
type State uint8

const (
	StateSeekingHome State = iota
	StateMovingIn
	StateSeekingJob
	StateGoingToWork
	StateWorking
	StateGoingHome
	StateIdle
)

var stateNames = [...]string{
	StateSeekingHome: "seeking_home",
	StateMovingIn:    "moving_in",
	StateSeekingJob:  "seeking_job",
	StateGoingToWork: "going_to_work",
	StateWorking:     "working",
	StateGoingHome:   "going_home",
	StateIdle:        "idle",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Sim is a resident of the city.
type Sim struct {
	ID    SimID          `json:"id"`
	Pos   world.Position `json:"pos"`
	State State          `json:"state"`

	Home *world.Position `json:"home,omitempty"`
	Job  *world.Position `json:"job,omitempty"`

	// Walking: remaining waypoints and progress toward the next one.
	Path     pathfind.Path `json:"path,omitempty"`
	Progress float64       `json:"progress"`

	// Ticks spent in the current working or idle spell.
	Timer int `json:"timer"`

	// Riding is set while the sim travels inside a vehicle.
	Riding  bool               `json:"riding"`
	Vehicle *transport.Vehicle `json:"-"`

	BornTick uint64 `json:"born_tick"`
}

// HasHome reports whether the sim holds a house claim.
func (s *Sim) HasHome() bool { return s.Home != nil }

// HasJob reports whether the sim holds a job claim.
func (s *Sim) HasJob() bool { return s.Job != nil }

// Params holds the tunables of the routine.
type Params struct {
	WalkSpeed       float64 // Progress per tick; a step is taken at 1.0
	WorkTicks       int
	IdleTicks       int
	CommuteDistance int // Manhattan distance beyond which a sim drives
}

// DefaultParams matches the city's default config.
func DefaultParams() Params {
	return Params{
		WalkSpeed:       0.05,
		WorkTicks:       480,
		IdleTicks:       240,
		CommuteDistance: 15,
	}
}
