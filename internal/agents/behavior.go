package agents

import (
	"fmt"

	"github.com/talgya/tilecity/internal/claims"
	"github.com/talgya/tilecity/internal/pathfind"
	"github.com/talgya/tilecity/internal/transport"
	"github.com/talgya/tilecity/internal/world"
)

// Env is what a sim needs from the city around it.
type Env interface {
	Grid() world.Reader
	Claims() *claims.Registry
	// SpawnVehicle starts a drive for owner; an error means the sim walks.
	SpawnVehicle(owner SimID, origin, target world.Position) (*transport.Vehicle, error)
}

var (
	homeWalkable    = world.Kinds(world.TileRoad, world.TileHouse)
	commuteWalkable = world.Kinds(world.TileRoad, world.TileHouse, world.TileFactory)
)

// Update advances the sim one tick and returns human-readable events.
//
// A walking sim only moves: it accumulates progress and steps onto the
// next waypoint once progress reaches 1, then runs its state logic on
// that same tick. A riding sim does nothing until Disembark.
func (s *Sim) Update(env Env, p Params) []string {
	if s.Riding {
		return nil
	}
	if len(s.Path) > 0 {
		if s.Progress < 1 {
			s.Progress += p.WalkSpeed
			return nil
		}
		s.Pos = s.Path[0]
		s.Path = s.Path[1:]
		s.Progress = 0
	}

	switch s.State {
	case StateSeekingHome:
		return s.seekHome(env)
	case StateMovingIn:
		return s.moveIn(env)
	case StateSeekingJob:
		return s.seekJob(env, p)
	case StateGoingToWork:
		return s.goToWork(env, p)
	case StateWorking:
		return s.work(env, p)
	case StateGoingHome:
		return s.goHome(env, p)
	case StateIdle:
		return s.idle(env, p)
	}
	return nil
}

// Disembark takes the sim out of its vehicle and puts it on the last tile
// of the vehicle's route.
func (s *Sim) Disembark(v *transport.Vehicle) {
	if dest, ok := v.Destination(); ok {
		s.Pos = dest
	}
	s.Path = nil
	s.Progress = 0
	s.Riding = false
	s.Vehicle = nil
}

func (s *Sim) seekHome(env Env) []string {
	g := env.Grid()
	home, ok := claims.FindNearestUnclaimed(g, env.Claims(), claims.Home, s.Pos)
	if !ok {
		return nil
	}
	if home != s.Pos {
		path := pathfind.Search(g, s.Pos, home, homeWalkable)
		if len(path) == 0 {
			// Unreachable for now; try again next tick.
			return nil
		}
		s.Path = path
		s.Progress = 0
	}
	s.Home = &home
	s.State = StateMovingIn
	return nil
}

func (s *Sim) moveIn(env Env) []string {
	if s.Home == nil {
		s.State = StateSeekingHome
		return nil
	}
	home := *s.Home
	if s.Pos != home {
		if len(s.Path) == 0 {
			s.Home = nil
			s.State = StateSeekingHome
		}
		return nil
	}

	if env.Grid().Kind(home) != world.TileHouse || !env.Claims().Claim(claims.Home, home) {
		// Bulldozed or taken while we walked over.
		s.Home = nil
		s.State = StateSeekingHome
		return nil
	}
	s.State = StateSeekingJob
	return []string{fmt.Sprintf("sim %d moved into the house at %s", s.ID, home)}
}

func (s *Sim) seekJob(env Env, p Params) []string {
	job, ok := claims.FindNearestUnclaimed(env.Grid(), env.Claims(), claims.Job, s.Pos)
	if !ok {
		return nil
	}
	env.Claims().Claim(claims.Job, job)
	s.Job = &job
	s.State = StateGoingToWork
	s.commute(env, p, job)
	return []string{fmt.Sprintf("sim %d took a job at %s", s.ID, job)}
}

func (s *Sim) goToWork(env Env, p Params) []string {
	if s.Job == nil {
		s.State = StateSeekingJob
		return nil
	}
	if s.Pos == *s.Job {
		s.State = StateWorking
		s.Timer = 0
		return nil
	}
	if env.Grid().Kind(*s.Job) != world.TileFactory {
		return s.loseJob(env)
	}
	if len(s.Path) == 0 {
		s.commute(env, p, *s.Job)
	}
	return nil
}

func (s *Sim) work(env Env, p Params) []string {
	s.Timer++
	if s.Timer < p.WorkTicks {
		return nil
	}
	s.Timer = 0
	if s.Home == nil || env.Grid().Kind(*s.Home) != world.TileHouse {
		return s.loseHome(env)
	}
	s.State = StateGoingHome
	s.commute(env, p, *s.Home)
	return nil
}

func (s *Sim) goHome(env Env, p Params) []string {
	if s.Home == nil {
		return s.loseHome(env)
	}
	if s.Pos == *s.Home {
		s.State = StateIdle
		s.Timer = 0
		return nil
	}
	if env.Grid().Kind(*s.Home) != world.TileHouse {
		return s.loseHome(env)
	}
	if len(s.Path) == 0 {
		s.commute(env, p, *s.Home)
	}
	return nil
}

func (s *Sim) idle(env Env, p Params) []string {
	s.Timer++
	if s.Timer < p.IdleTicks {
		return nil
	}
	s.Timer = 0
	if s.Job == nil || env.Grid().Kind(*s.Job) != world.TileFactory {
		return s.loseJob(env)
	}
	s.State = StateGoingToWork
	s.commute(env, p, *s.Job)
	return nil
}

// loseJob drops the job claim and sends the sim looking for another.
func (s *Sim) loseJob(env Env) []string {
	if s.Job == nil {
		s.State = StateSeekingJob
		return nil
	}
	job := *s.Job
	env.Claims().Release(claims.Job, job)
	s.Job = nil
	s.Path = nil
	s.State = StateSeekingJob
	return []string{fmt.Sprintf("sim %d lost its job at %s", s.ID, job)}
}

// loseHome drops both claims; a homeless sim starts the routine over.
func (s *Sim) loseHome(env Env) []string {
	var events []string
	if s.Job != nil {
		env.Claims().Release(claims.Job, *s.Job)
		s.Job = nil
	}
	if s.Home != nil {
		env.Claims().Release(claims.Home, *s.Home)
		events = append(events, fmt.Sprintf("sim %d lost its house at %s", s.ID, *s.Home))
		s.Home = nil
	}
	s.Path = nil
	s.State = StateSeekingHome
	return events
}

// commute sets the sim travelling to target. Long trips are driven when a
// vehicle can be had; everything else is walked over roads and buildings.
// An empty walking path leaves the sim in place to retry later.
func (s *Sim) commute(env Env, p Params, target world.Position) {
	s.Progress = 0
	if world.Manhattan(s.Pos, target) > p.CommuteDistance {
		if v, err := env.SpawnVehicle(s.ID, s.Pos, target); err == nil {
			s.Path = nil
			s.Riding = true
			s.Vehicle = v
			return
		}
	}
	s.Path = pathfind.Search(env.Grid(), s.Pos, target, commuteWalkable)
}
