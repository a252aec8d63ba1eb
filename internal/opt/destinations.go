package opt

import (
	"math"
	"sort"
)

// Destination is an immutable delivery point. The depot sits at (0,0) and is never a destination.
type Destination struct {
	ID     int
	X, Y   float64
	Demand float64
}

// DestinationSet is the fixed destination table of a run, ordered by ascending id.
type DestinationSet struct {
	list []Destination
	pos  map[int]int
}

// NewDestinationSet validates points and indexes them by id.
func NewDestinationSet(points map[int]Point) (*DestinationSet, error) {
	if len(points) == 0 {
		return nil, paramErrorf("destinations", "at least one destination is required")
	}
	ids := make([]int, 0, len(points))
	for id := range points {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	s := &DestinationSet{list: make([]Destination, 0, len(ids)), pos: make(map[int]int, len(ids))}
	for _, id := range ids {
		p := points[id]
		if !finite(p.X) || !finite(p.Y) {
			return nil, paramErrorf("destinations", "destination %d has non-finite coordinates", id)
		}
		if !finite(p.Demand) || p.Demand < 0 {
			return nil, paramErrorf("destinations", "destination %d demand must be a finite value >= 0 (got %v)", id, p.Demand)
		}
		s.pos[id] = len(s.list)
		s.list = append(s.list, Destination{ID: id, X: p.X, Y: p.Y, Demand: p.Demand})
	}
	return s, nil
}

// MustDestinationSet panics on invalid input; for fixtures and tests.
func MustDestinationSet(points map[int]Point) *DestinationSet {
	s, err := NewDestinationSet(points)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *DestinationSet) Len() int { return len(s.list) }

// IDs returns a fresh ascending slice of destination ids.
func (s *DestinationSet) IDs() []int {
	out := make([]int, len(s.list))
	for i, d := range s.list {
		out[i] = d.ID
	}
	return out
}

func (s *DestinationSet) Get(id int) (Destination, bool) {
	i, ok := s.pos[id]
	if !ok {
		return Destination{}, false
	}
	return s.list[i], true
}

func (s *DestinationSet) Has(id int) bool {
	_, ok := s.pos[id]
	return ok
}

// Demand returns 0 for unknown ids.
func (s *DestinationSet) Demand(id int) float64 {
	if i, ok := s.pos[id]; ok {
		return s.list[i].Demand
	}
	return 0
}

// RouteDemand sums demands in visiting order.
func (s *DestinationSet) RouteDemand(r Route) float64 {
	total := 0.0
	for _, id := range r {
		total += s.Demand(id)
	}
	return total
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
