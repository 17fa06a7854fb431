// Package economy keeps the city's books: population, jobs, tax income
// and the demand that drives zone growth.
package economy

import (
	"github.com/talgya/tilecity/internal/world"
)

const (
	ResidentsPerHouse = 10
	JobsPerFactory    = 5
	PerCapitaIncome   = 2
)

// Economy is recomputed from the grid every tick. Only Income and Money
// carry over between ticks.
type Economy struct {
	TaxRate float64 `json:"tax_rate"`

	Houses     int `json:"houses"`
	Factories  int `json:"factories"`
	Population int `json:"population"`
	Jobs       int `json:"jobs"`

	// Income accrues every tick until the next payout moves it to Money.
	Income int64 `json:"income"`
	Money  int64 `json:"money"`

	Happiness float64     `json:"happiness"` // 0.0–1.0
	Demand    world.Demand `json:"demand"`
}

// New creates an economy with starting funds.
func New(startingMoney int64, taxRate float64) *Economy {
	return &Economy{
		TaxRate:   taxRate,
		Money:     startingMoney,
		Happiness: 1.0,
	}
}

// Update recounts buildings on g and accrues this tick's tax income.
func (e *Economy) Update(g *world.Grid) {
	e.Houses = g.Count(world.TileHouse)
	e.Factories = g.Count(world.TileFactory)
	e.Population = e.Houses * ResidentsPerHouse
	e.Jobs = e.Factories * JobsPerFactory

	e.Income += int64(float64(e.Population*PerCapitaIncome) * e.TaxRate)

	e.Demand = world.Demand{
		Residential: e.Houses < e.Jobs/JobsPerFactory,
		Industrial:  e.Jobs < e.Population,
	}

	if e.Population > 0 {
		e.Happiness = min(float64(e.Jobs)/float64(e.Population), 1.0)
	} else {
		e.Happiness = 1.0
	}
}

// Payout moves accrued income into the treasury and returns the amount.
func (e *Economy) Payout() int64 {
	paid := e.Income
	e.Money += paid
	e.Income = 0
	return paid
}

// Spend deducts cost if the treasury covers it.
func (e *Economy) Spend(cost int64) bool {
	if cost > e.Money {
		return false
	}
	e.Money -= cost
	return true
}
