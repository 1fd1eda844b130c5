package events

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stat aggregates the durations of one descriptor.
type Stat struct {
	Descriptor Descriptor
	Count      int
	Total      float64
	Mean       float64
	StdDev     float64
	Min        float64
	Max        float64
}

// Summary aggregates the durations of the occupied slots per descriptor,
// ordered by descriptor.
func (p *Pool) Summary() []Stat {
	byDesc := map[Descriptor][]float64{}
	for _, e := range p.Events() {
		byDesc[e.Descriptor] = append(byDesc[e.Descriptor], float64(e.Duration()))
	}
	out := make([]Stat, 0, len(byDesc))
	for d, xs := range byDesc {
		mean, std := stat.MeanStdDev(xs, nil)
		if len(xs) < 2 {
			std = 0
		}
		out = append(out, Stat{
			Descriptor: d,
			Count:      len(xs),
			Total:      floats.Sum(xs),
			Mean:       mean,
			StdDev:     std,
			Min:        floats.Min(xs),
			Max:        floats.Max(xs),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor < out[j].Descriptor })
	return out
}
