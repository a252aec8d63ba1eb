package opt

import "math"

// Distance is the Euclidean distance between two points.
func Distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(ax-bx, ay-by)
}

// RouteCost is the closed tour length depot -> stops in order -> depot. Empty routes cost 0.
// Unknown ids are skipped.
func RouteCost(r Route, dests *DestinationSet) float64 {
	if len(r) == 0 {
		return 0
	}
	total := 0.0
	var curX, curY float64
	for _, id := range r {
		d, ok := dests.Get(id)
		if !ok {
			continue
		}
		total += Distance(curX, curY, d.X, d.Y)
		curX, curY = d.X, d.Y
	}
	return total + Distance(curX, curY, 0, 0)
}

// TotalDistance sums RouteCost over every route regardless of capacity.
func TotalDistance(ind Individual, dests *DestinationSet) float64 {
	total := 0.0
	for _, r := range ind {
		total += RouteCost(r, dests)
	}
	return total
}
