package agents

import (
	"testing"

	"github.com/talgya/tilecity/internal/claims"
	"github.com/talgya/tilecity/internal/transport"
	"github.com/talgya/tilecity/internal/world"
)

type testEnv struct {
	grid   *world.Grid
	reg    *claims.Registry
	fleet  *transport.Fleet
	drives int
}

func newTestEnv(g *world.Grid) *testEnv {
	return &testEnv{grid: g, reg: claims.NewRegistry(), fleet: transport.NewFleet(1.0, 1.0)}
}

func (e *testEnv) Grid() world.Reader       { return e.grid }
func (e *testEnv) Claims() *claims.Registry { return e.reg }
func (e *testEnv) SpawnVehicle(owner SimID, origin, target world.Position) (*transport.Vehicle, error) {
	e.drives++
	return e.fleet.Spawn(e.grid, uint64(owner), origin, target)
}

// corridor builds a one-row map: house at col 0, factory at the far end,
// roads between.
func corridor(cols int) *world.Grid {
	g := world.NewGrid(1, cols)
	g.Set(0, 0, world.TileHouse)
	for c := 1; c < cols-1; c++ {
		g.Set(0, c, world.TileRoad)
	}
	g.Set(0, cols-1, world.TileFactory)
	return g
}

// allowed lists the legal next states of each state.
var allowed = map[State][]State{
	StateSeekingHome: {StateMovingIn},
	StateMovingIn:    {StateSeekingJob, StateSeekingHome},
	StateSeekingJob:  {StateGoingToWork},
	StateGoingToWork: {StateWorking, StateSeekingJob},
	StateWorking:     {StateGoingHome, StateSeekingHome},
	StateGoingHome:   {StateIdle, StateSeekingHome},
	StateIdle:        {StateGoingToWork, StateSeekingJob},
}

func checkTransition(t *testing.T, from, to State) {
	t.Helper()
	if from == to {
		return
	}
	for _, s := range allowed[from] {
		if s == to {
			return
		}
	}
	t.Fatalf("illegal transition %s -> %s", from, to)
}

func TestSim_WalkingRoutine(t *testing.T) {
	env := newTestEnv(corridor(6))
	p := DefaultParams()
	p.WorkTicks = 10
	p.IdleTicks = 5

	s := NewSpawner(1).Spawn(world.Pos(0, 2), 0)
	seen := map[State]bool{s.State: true}
	for tick := 0; tick < 2000; tick++ {
		prev := s.State
		s.Update(env, p)
		checkTransition(t, prev, s.State)
		seen[s.State] = true
		if prev == StateGoingHome && s.State == StateIdle {
			break
		}
	}

	for _, st := range []State{StateSeekingHome, StateMovingIn, StateSeekingJob, StateGoingToWork, StateWorking, StateGoingHome, StateIdle} {
		if !seen[st] {
			t.Errorf("never reached %s", st)
		}
	}
	if s.Pos != world.Pos(0, 0) {
		t.Errorf("idle sim at %v, want at home (0,0)", s.Pos)
	}
	if !env.reg.IsClaimed(claims.Home, world.Pos(0, 0)) || !env.reg.IsClaimed(claims.Job, world.Pos(0, 5)) {
		t.Error("home and job should both be claimed")
	}
	if env.drives != 0 {
		t.Errorf("short commute spawned %d vehicles", env.drives)
	}
}

func TestSim_WalkingTakesWholeSteps(t *testing.T) {
	env := newTestEnv(corridor(4))
	s := NewSpawner(1).Spawn(world.Pos(0, 2), 0)
	p := DefaultParams()

	s.Update(env, p) // seeking_home -> moving_in with a 2-step path
	if s.State != StateMovingIn || len(s.Path) != 2 {
		t.Fatalf("state %s path %v", s.State, s.Path)
	}
	for i := 0; i < 20; i++ {
		s.Update(env, p)
		if s.Pos != world.Pos(0, 2) {
			t.Fatalf("moved after %d ticks; progress %v", i+1, s.Progress)
		}
	}
}

func TestSim_LongCommuteRides(t *testing.T) {
	env := newTestEnv(corridor(20)) // house to factory distance 19
	p := DefaultParams()
	s := NewSpawner(1).Spawn(world.Pos(0, 0), 0)

	s.Update(env, p) // standing on the house: moving_in with no path
	s.Update(env, p) // claims the house
	if s.State != StateSeekingJob {
		t.Fatalf("state %s, want seeking_job", s.State)
	}
	s.Update(env, p)
	if s.State != StateGoingToWork || !s.Riding || env.drives != 1 {
		t.Fatalf("state %s riding %v drives %d", s.State, s.Riding, env.drives)
	}

	for i := 0; i < 100 && s.Riding; i++ {
		s.Update(env, p)
		if s.Pos != world.Pos(0, 0) {
			t.Fatal("a riding sim must not move on its own")
		}
		for _, v := range env.fleet.Update() {
			if SimID(v.Owner) == s.ID {
				s.Disembark(v)
			}
		}
	}
	if s.Riding || s.Pos != world.Pos(0, 19) {
		t.Fatalf("after the drive riding=%v pos=%v", s.Riding, s.Pos)
	}
	s.Update(env, p)
	if s.State != StateWorking {
		t.Errorf("state %s, want working", s.State)
	}
}

func TestSim_TimersFireExactly(t *testing.T) {
	tests := []struct {
		name  string
		state State
		ticks int
		next  State
	}{
		{"work", StateWorking, 480, StateGoingHome},
		{"idle", StateIdle, 240, StateGoingToWork},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			g := world.NewGrid(1, 3)
			g.Set(0, 0, world.TileHouse)
			g.Set(0, 1, world.TileRoad)
			g.Set(0, 2, world.TileFactory)
			env := newTestEnv(g)
			home, job := world.Pos(0, 0), world.Pos(0, 2)
			env.reg.Claim(claims.Home, home)
			env.reg.Claim(claims.Job, job)

			s := &Sim{ID: 1, State: test.state, Home: &home, Job: &job}
			s.Pos = job
			if test.state == StateIdle {
				s.Pos = home
			}

			p := DefaultParams()
			for i := 1; i < test.ticks; i++ {
				s.Update(env, p)
				if s.State != test.state {
					t.Fatalf("left %s after %d ticks", test.state, i)
				}
			}
			s.Update(env, p)
			if s.State != test.next {
				t.Fatalf("after %d ticks state %s, want %s", test.ticks, s.State, test.next)
			}
			if len(s.Path) != 2 {
				t.Errorf("commute path %v, want 2 steps", s.Path)
			}
		})
	}
}

func TestSim_HouseTakenOnArrival(t *testing.T) {
	env := newTestEnv(corridor(5))
	spawner := NewSpawner(1)
	a := spawner.Spawn(world.Pos(0, 1), 0)
	b := spawner.Spawn(world.Pos(0, 2), 0)
	p := DefaultParams()

	a.Update(env, p)
	b.Update(env, p)
	if a.State != StateMovingIn || b.State != StateMovingIn {
		t.Fatal("both sims should head for the only house")
	}
	for i := 0; i < 200 && a.State == StateMovingIn; i++ {
		a.Update(env, p)
	}
	if a.State != StateSeekingJob {
		t.Fatalf("first sim state %s", a.State)
	}
	for i := 0; i < 200 && b.State == StateMovingIn; i++ {
		b.Update(env, p)
	}
	if b.State != StateSeekingHome || b.HasHome() {
		t.Errorf("second sim state %s home %v, want to resume searching", b.State, b.Home)
	}
}

func TestSim_BulldozedJobIsReleased(t *testing.T) {
	g := corridor(4)
	env := newTestEnv(g)
	home, job := world.Pos(0, 0), world.Pos(0, 3)
	env.reg.Claim(claims.Home, home)
	env.reg.Claim(claims.Job, job)
	s := &Sim{ID: 1, Pos: home, State: StateIdle, Home: &home, Job: &job}

	g.Set(0, 3, world.TileEmpty)
	p := DefaultParams()
	p.IdleTicks = 1
	events := s.Update(env, p)

	if s.State != StateSeekingJob || s.HasJob() {
		t.Fatalf("state %s job %v", s.State, s.Job)
	}
	if env.reg.IsClaimed(claims.Job, job) {
		t.Error("job claim should be released")
	}
	if len(events) != 1 {
		t.Errorf("events = %v", events)
	}
}

func TestSim_NoHouseStaysSeeking(t *testing.T) {
	g := world.NewGrid(3, 3)
	env := newTestEnv(g)
	s := NewSpawner(1).Spawn(world.Pos(1, 1), 0)
	for i := 0; i < 5; i++ {
		s.Update(env, DefaultParams())
	}
	if s.State != StateSeekingHome {
		t.Errorf("state %s, want seeking_home", s.State)
	}
}

func TestSpawner_SpawnAtEdge(t *testing.T) {
	g := world.NewGrid(5, 5)
	sp := NewSpawner(7)
	if _, ok := sp.SpawnAtEdge(g, 0); ok {
		t.Fatal("no boundary road, spawn should fail")
	}
	g.Set(0, 2, world.TileRoad)
	g.Set(2, 2, world.TileRoad)
	for i := 0; i < 10; i++ {
		s, ok := sp.SpawnAtEdge(g, 3)
		if !ok || s.Pos != world.Pos(0, 2) {
			t.Fatalf("spawned at %v,%v; want the edge road", s, ok)
		}
		if s.State != StateSeekingHome || s.BornTick != 3 {
			t.Errorf("new sim %+v", s)
		}
	}
	if sp.NextID() != 11 {
		t.Errorf("NextID = %d, want 11", sp.NextID())
	}
}

func TestState_String(t *testing.T) {
	if StateGoingToWork.String() != "going_to_work" || State(99).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
