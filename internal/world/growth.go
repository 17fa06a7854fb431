package world

// Demand carries the economy's demand signals for one tick.
type Demand struct {
	Residential bool `json:"residential"`
	Industrial  bool `json:"industrial"`
}

// Roller yields uniform floats in [0, 1). *rand.Rand satisfies it.
type Roller interface {
	Float64() float64
}

// Growth is one tile converted by a growth pass.
type Growth struct {
	Pos  Position `json:"pos"`
	Kind TileKind `json:"kind"`
}

// GrowZones runs one zone growth pass. Every zone tile whose demand flag is
// set and which touches a road converts to its building with probability p,
// one independent roll per eligible tile in row-major order. Buildings are
// never turned back into zones.
func GrowZones(g *Grid, demand Demand, rng Roller, p float64) []Growth {
	if !demand.Residential && !demand.Industrial {
		return nil
	}

	var grown []Growth
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			pos := Pos(r, c)
			var target TileKind
			switch g.Kind(pos) {
			case TileZoneResidential:
				if !demand.Residential {
					continue
				}
				target = TileHouse
			case TileZoneIndustrial:
				if !demand.Industrial {
					continue
				}
				target = TileFactory
			default:
				continue
			}

			if !g.HasAdjacent(pos, TileRoad) {
				continue
			}
			if rng.Float64() < p {
				g.tiles[r*g.cols+c] = target
				grown = append(grown, Growth{Pos: pos, Kind: target})
			}
		}
	}
	return grown
}
