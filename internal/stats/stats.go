// Package stats computes summary statistics over the score distribution of a
// single test. The aggregator set is pluggable: adding a statistic means
// registering another Aggregator, the engine itself never changes.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/markr-hq/markr-api/internal/models"
)

// Aggregator computes one named statistic over a pre-sorted score list.
type Aggregator interface {
	// Key is the stable name this statistic is published under.
	Key() string
	// Compute evaluates the statistic. Scores arrive sorted ascending.
	Compute(sorted []float64) float64
}

// Registry holds an ordered list of aggregators.
type Registry struct {
	aggregators []Aggregator
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends an aggregator, returning the registry for chaining.
func (r *Registry) Register(a Aggregator) *Registry {
	r.aggregators = append(r.aggregators, a)
	return r
}

// Keys returns the registered statistic names in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.aggregators))
	for i, a := range r.aggregators {
		keys[i] = a.Key()
	}
	return keys
}

// Report sorts a copy of the scores once and evaluates every registered
// aggregator against it. The output always carries exactly the registered
// keys, including for empty input.
func (r *Registry) Report(scores []float64) models.StatMap {
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	result := make(models.StatMap, len(r.aggregators))
	for _, a := range r.aggregators {
		result[a.Key()] = a.Compute(sorted)
	}
	return result
}

// Default returns the standard registry: mean, stddev, min, max, count and
// the 25th/50th/75th percentiles.
func Default() *Registry {
	return NewRegistry().
		Register(Mean{}).
		Register(StdDev{}).
		Register(Min{}).
		Register(Max{}).
		Register(Count{}).
		Register(NewPercentile(25)).
		Register(NewPercentile(50)).
		Register(NewPercentile(75))
}

// Mean is the arithmetic mean, 0.0 for an empty list.
type Mean struct{}

func (Mean) Key() string { return "mean" }

func (Mean) Compute(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}
	return models.Round2(sum(sorted) / float64(len(sorted)))
}

// StdDev is the population standard deviation (divide by N, not N-1).
// 0.0 for empty and single-element lists.
type StdDev struct{}

func (StdDev) Key() string { return "stddev" }

func (StdDev) Compute(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}
	mean := sum(sorted) / float64(len(sorted))
	var variance float64
	for _, s := range sorted {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(sorted))
	return models.Round2(math.Sqrt(variance))
}

// Min is the smallest score, 0.0 for an empty list.
type Min struct{}

func (Min) Key() string { return "min" }

func (Min) Compute(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}
	return sorted[0]
}

// Max is the largest score, 0.0 for an empty list.
type Max struct{}

func (Max) Key() string { return "max" }

func (Max) Compute(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}
	return sorted[len(sorted)-1]
}

// Count is the number of scores.
type Count struct{}

func (Count) Key() string { return "count" }

func (Count) Compute(sorted []float64) float64 {
	return float64(len(sorted))
}

// Percentile computes the pth percentile by linear interpolation on
// rank = (p/100)*(n-1). For even-sized lists the median (p50) is the
// interpolated midpoint, not the average of the two middle values.
type Percentile struct {
	p int
}

// NewPercentile builds a percentile aggregator for p in [0, 100].
func NewPercentile(p int) Percentile {
	return Percentile{p: p}
}

func (a Percentile) Key() string { return fmt.Sprintf("p%d", a.p) }

func (a Percentile) Compute(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := float64(a.p) / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return models.Round2(sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo)))
}

func sum(scores []float64) float64 {
	var total float64
	for _, s := range scores {
		total += s
	}
	return total
}
