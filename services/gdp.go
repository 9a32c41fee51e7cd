package services

import (
	"math/rand"
	"time"
)

// Multiplier bounds for the GDP estimate, half-open [min, max).
const (
	gdpMultiplierMin = 1000
	gdpMultiplierMax = 2000
)

// Calculator derives the estimated GDP figure for a record. The random
// source is injected so tests can fix the seed; production wiring passes nil
// and gets an entropy-seeded source.
type Calculator struct {
	rng *rand.Rand
}

func NewCalculator(rng *rand.Rand) *Calculator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Calculator{rng: rng}
}

// Estimate returns population * multiplier / rate with the multiplier drawn
// uniformly from [1000, 2000). A missing population, missing rate, or a rate
// of exactly zero yields 0.
func (c *Calculator) Estimate(population *int64, rate *float64) float64 {
	if population == nil || rate == nil || *rate == 0 {
		return 0
	}
	multiplier := gdpMultiplierMin + c.rng.Float64()*(gdpMultiplierMax-gdpMultiplierMin)
	return float64(*population) * multiplier / *rate
}
