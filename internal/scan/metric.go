package scan

import "github.com/MJE43/pf-mines/internal/games"

// Metric names a per-nonce number computed from a derived board.
type Metric string

const (
	// MetricFirstMine is the 1-based tile number of the lowest mine position.
	MetricFirstMine Metric = "first_mine"
	// MetricSafeRun counts the safe tiles before the first mine when revealing
	// 0, 1, 2, ... in order.
	MetricSafeRun Metric = "safe_run"
	// MetricRunMultiplier is the multiplier reached by cashing out at the end
	// of the safe run.
	MetricRunMultiplier Metric = "run_multiplier"
	// MetricPicksHit counts how many of the request's picks are mines.
	MetricPicksHit Metric = "picks_hit"
)

// Metrics lists every known metric.
var Metrics = []Metric{MetricFirstMine, MetricSafeRun, MetricRunMultiplier, MetricPicksHit}

// Valid reports whether m is known.
func (m Metric) Valid() bool {
	for _, known := range Metrics {
		if m == known {
			return true
		}
	}
	return false
}

// integral reports whether the metric only takes whole values.
func (m Metric) integral() bool {
	return m != MetricRunMultiplier
}

// evaluator computes a metric from a sorted mine set.
type evaluator func(mines []int) float64

func newEvaluator(m Metric, gridSize, mineCount int, picks []int) evaluator {
	total := gridSize * gridSize
	switch m {
	case MetricFirstMine:
		return func(mines []int) float64 { return float64(mines[0] + 1) }
	case MetricSafeRun:
		return func(mines []int) float64 { return float64(mines[0]) }
	case MetricRunMultiplier:
		return func(mines []int) float64 { return games.Multiplier(total, mineCount, mines[0]) }
	case MetricPicksHit:
		picked := make([]bool, total)
		for _, p := range picks {
			picked[p] = true
		}
		return func(mines []int) float64 {
			n := 0
			for _, pos := range mines {
				if picked[pos] {
					n++
				}
			}
			return float64(n)
		}
	default:
		return nil
	}
}
