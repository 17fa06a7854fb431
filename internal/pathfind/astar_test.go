package pathfind

import (
	"math/rand"
	"testing"

	"github.com/talgya/tilecity/internal/world"
)

// gridFromLayout builds a grid from rows of characters:
// R road, H house, F factory, . empty.
func gridFromLayout(layout []string) *world.Grid {
	g := world.NewGrid(len(layout), len(layout[0]))
	for r, row := range layout {
		for c, ch := range row {
			var k world.TileKind
			switch ch {
			case 'R':
				k = world.TileRoad
			case 'H':
				k = world.TileHouse
			case 'F':
				k = world.TileFactory
			default:
				k = world.TileEmpty
			}
			g.Set(r, c, k)
		}
	}
	return g
}

// bfsDistance is the brute-force reference: shortest step count from start
// to goal over traversable tiles, or -1.
func bfsDistance(g *world.Grid, start, goal world.Position, traversable world.KindSet) int {
	if start == goal {
		return 0
	}
	dist := map[world.Position]int{start: 0}
	queue := []world.Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range cur.Neighbors() {
			if !g.InBounds(n) || !traversable.Has(g.Kind(n)) {
				continue
			}
			if _, seen := dist[n]; seen {
				continue
			}
			dist[n] = dist[cur] + 1
			if n == goal {
				return dist[n]
			}
			queue = append(queue, n)
		}
	}
	return -1
}

func checkPath(t *testing.T, g *world.Grid, start, goal world.Position, traversable world.KindSet, path Path) {
	t.Helper()
	prev := start
	for i, p := range path {
		if world.Manhattan(prev, p) != 1 {
			t.Fatalf("step %d %v -> %v is not 4-connected", i, prev, p)
		}
		if !traversable.Has(g.Kind(p)) {
			t.Fatalf("step %d %v lands on %v", i, p, g.Kind(p))
		}
		prev = p
	}
	if len(path) > 0 && path[len(path)-1] != goal {
		t.Fatalf("path ends at %v, want %v", path[len(path)-1], goal)
	}
}

func TestSearch_SimpleCorridor(t *testing.T) {
	g := gridFromLayout([]string{
		"RRRH",
		"R...",
		"RRRF",
	})
	roads := world.Kinds(world.TileRoad, world.TileHouse, world.TileFactory)

	path := Search(g, world.Pos(2, 0), world.Pos(0, 3), roads)
	want := Path{
		world.Pos(1, 0), world.Pos(0, 0), world.Pos(0, 1), world.Pos(0, 2), world.Pos(0, 3),
	}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}
}

func TestSearch_EmptyCases(t *testing.T) {
	g := gridFromLayout([]string{
		"R.H",
		"R..",
	})
	roads := world.Kinds(world.TileRoad, world.TileHouse)

	tests := []struct {
		name        string
		start, goal world.Position
	}{
		{"start equals goal", world.Pos(0, 0), world.Pos(0, 0)},
		{"unreachable goal", world.Pos(0, 0), world.Pos(0, 2)},
		{"goal out of bounds", world.Pos(0, 0), world.Pos(5, 5)},
		{"start out of bounds", world.Pos(-1, 0), world.Pos(1, 0)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if path := Search(g, test.start, test.goal, roads); len(path) != 0 {
				t.Errorf("expected empty path, got %v", path)
			}
		})
	}
}

func TestSearch_GoalMustBeTraversable(t *testing.T) {
	g := gridFromLayout([]string{"RRH"})
	if path := Search(g, world.Pos(0, 0), world.Pos(0, 2), world.Kinds(world.TileRoad)); len(path) != 0 {
		t.Errorf("road-only search should not enter a house, got %v", path)
	}
}

func TestSearch_StartNeedNotBeTraversable(t *testing.T) {
	g := gridFromLayout([]string{"HRR"})
	path := Search(g, world.Pos(0, 0), world.Pos(0, 2), world.Kinds(world.TileRoad))
	if len(path) != 2 {
		t.Errorf("expected 2-step path off a house, got %v", path)
	}
}

func TestSearch_MatchesBruteForceBFS(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	traversable := world.Kinds(world.TileRoad, world.TileHouse)

	for trial := 0; trial < 300; trial++ {
		rows, cols := 2+rng.Intn(6), 2+rng.Intn(6)
		g := world.NewGrid(rows, cols)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				switch x := rng.Float64(); {
				case x < 0.55:
					g.Set(r, c, world.TileRoad)
				case x < 0.65:
					g.Set(r, c, world.TileHouse)
				case x < 0.75:
					g.Set(r, c, world.TileFactory)
				}
			}
		}
		start := world.Pos(rng.Intn(rows), rng.Intn(cols))
		goal := world.Pos(rng.Intn(rows), rng.Intn(cols))

		path := Search(g, start, goal, traversable)
		want := bfsDistance(g, start, goal, traversable)

		switch {
		case want <= 0 && len(path) != 0:
			t.Fatalf("trial %d: want empty path, got %v", trial, path)
		case want > 0 && len(path) != want:
			t.Fatalf("trial %d: path length %d, BFS says %d (%v -> %v)", trial, len(path), want, start, goal)
		}
		checkPath(t, g, start, goal, traversable, path)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	g := gridFromLayout([]string{
		"RRRRR",
		"RRRRR",
		"RRRRR",
		"RRRRR",
	})
	roads := world.Kinds(world.TileRoad)
	first := Search(g, world.Pos(0, 0), world.Pos(3, 4), roads)
	for i := 0; i < 20; i++ {
		again := Search(g, world.Pos(0, 0), world.Pos(3, 4), roads)
		if len(again) != len(first) {
			t.Fatalf("run %d length changed", i)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d differs at step %d: %v vs %v", i, j, again[j], first[j])
			}
		}
	}
}

func TestSearchFunc_GoalException(t *testing.T) {
	g := gridFromLayout([]string{"RRH", "..H"})
	goal := world.Pos(0, 2)
	path := SearchFunc(g, world.Pos(0, 0), goal, func(p world.Position, k world.TileKind) bool {
		return k == world.TileRoad || p == goal
	})
	if len(path) != 2 || path[1] != goal {
		t.Errorf("path = %v, want two steps ending at %v", path, goal)
	}
}
