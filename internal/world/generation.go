// Starter map generation. A new city is empty land with one road leading
// off the map; optionally, simplex noise pre-zones patches of land so a
// fresh city has somewhere to grow.
package world

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds starter map parameters.
type GenConfig struct {
	Rows    int
	Cols    int
	Seed    int64   // Random seed (0 = random)
	PreZone bool    // Scatter zone patches using noise
	ZoneLvl float64 // Noise threshold above which land is zoned (0.0–1.0)
}

// DefaultGenConfig returns the 800×600 / 16px layout: 37 rows × 50 columns.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Rows:    37,
		Cols:    50,
		Seed:    0,
		PreZone: false,
		ZoneLvl: 0.72,
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Rows:    10,
		Cols:    10,
		Seed:    42,
		PreZone: false,
		ZoneLvl: 0.72,
	}
}

// Generate creates a starter grid and returns it with the position of its
// outside connection.
func Generate(cfg GenConfig) (*Grid, Position) {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	g := NewGrid(cfg.Rows, cfg.Cols)
	if cfg.PreZone {
		preZone(g, seed, cfg.ZoneLvl)
	}
	outside := g.PlaceOutsideConnection(rng)
	return g, outside
}

// preZone marks residential and industrial patches from two independent
// noise layers. The map border is left empty; residential wins ties.
func preZone(g *Grid, seed int64, level float64) {
	resNoise := opensimplex.NewNormalized(seed + 1)
	indNoise := opensimplex.NewNormalized(seed + 2)

	for r := 1; r < g.rows-1; r++ {
		for c := 1; c < g.cols-1; c++ {
			x := float64(c)
			y := float64(r)
			res := octaveNoise(resNoise, x, y, 3, 0.09, 0.5)
			ind := octaveNoise(indNoise, x, y, 3, 0.07, 0.5)

			switch {
			case res >= level && res >= ind:
				g.tiles[r*g.cols+c] = TileZoneResidential
			case ind >= level:
				g.tiles[r*g.cols+c] = TileZoneIndustrial
			}
		}
	}
}

// octaveNoise samples multi-octave noise normalized back to [0, 1].
func octaveNoise(n opensimplex.Noise, x, y float64, octaves int, freq, persistence float64) float64 {
	total := 0.0
	amp := 1.0
	maxAmp := 0.0
	for i := 0; i < octaves; i++ {
		total += n.Eval2(x*freq, y*freq) * amp
		maxAmp += amp
		amp *= persistence
		freq *= 2
	}
	return total / maxAmp
}
