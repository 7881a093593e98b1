// Package scan replays many nonces of one seed pair and reports the nonces
// whose boards match a target.
package scan

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MJE43/pf-mines/internal/engine"
	"github.com/MJE43/pf-mines/internal/games"
)

const (
	// MaxRange is the largest number of nonces one scan may cover.
	MaxRange = 1_000_000
	// MaxLimit is the largest hit limit a scan may request.
	MaxLimit = 100_000
	// DefaultLimit applies when a request leaves Limit at zero.
	DefaultLimit = 1000

	batchSize = 4096
)

// ScanRequest represents a scan operation request
type ScanRequest struct {
	Seeds      engine.Seeds `json:"seeds"`
	NonceStart uint64       `json:"nonce_start"`
	NonceEnd   uint64       `json:"nonce_end"`
	GridSize   int          `json:"grid_size"`
	MineCount  int          `json:"mine_count"`
	Metric     Metric       `json:"metric"`
	Picks      []int        `json:"picks,omitempty"` // for picks_hit
	TargetOp   TargetOp     `json:"target_op"`
	TargetVal  float64      `json:"target_val"`
	TargetVal2 float64      `json:"target_val2,omitempty"` // for "between" and "outside"
	Tolerance  float64      `json:"tolerance"`             // default 1e-9 for multipliers, 0 for counts
	Limit      int          `json:"limit,omitempty"`
	TimeoutMs  int          `json:"timeout_ms,omitempty"`
}

// Validate checks the request before any work starts.
func (r ScanRequest) Validate() error {
	if r.NonceEnd < r.NonceStart {
		return fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, r.NonceEnd, r.NonceStart)
	}
	if r.NonceEnd-r.NonceStart >= MaxRange {
		return fmt.Errorf("%w: at most %d nonces per scan", ErrRangeTooLarge, MaxRange)
	}
	if r.Limit < 0 || r.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be 0-%d", ErrLimitTooLarge, MaxLimit)
	}
	if err := games.ValidateBoard(r.GridSize, r.MineCount); err != nil {
		return err
	}
	if !r.Metric.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, r.Metric)
	}
	if !r.TargetOp.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOp, r.TargetOp)
	}
	if r.Metric == MetricPicksHit {
		if len(r.Picks) == 0 {
			return fmt.Errorf("%w: picks_hit needs at least one pick", ErrInvalidPicks)
		}
		seen := make(map[int]bool, len(r.Picks))
		for _, p := range r.Picks {
			if p < 0 || p >= r.GridSize*r.GridSize || seen[p] {
				return fmt.Errorf("%w: %d", ErrInvalidPicks, p)
			}
			seen[p] = true
		}
	}
	return nil
}

// Hit represents a single matching result
type Hit struct {
	Nonce  uint64  `json:"nonce"`
	Metric float64 `json:"metric"`
	Mines  []int   `json:"mines"`
}

// Summary contains aggregate statistics over the returned hits
type Summary struct {
	TotalEvaluated uint64  `json:"total_evaluated"`
	HitsFound      int     `json:"hits_found"`
	MinMetric      float64 `json:"min_metric"`
	MaxMetric      float64 `json:"max_metric"`
	MeanMetric     float64 `json:"mean_metric"`
	LimitReached   bool    `json:"limit_reached,omitempty"`
	TimedOut       bool    `json:"timed_out,omitempty"`
}

// ScanResult contains the complete scan results
type ScanResult struct {
	Hits          []Hit       `json:"hits"`
	Summary       Summary     `json:"summary"`
	EngineVersion string      `json:"engine_version"`
	Echo          ScanRequest `json:"echo"`
}

type scanJob struct {
	start, end uint64
}

// Scanner fans nonce batches out to a fixed number of workers.
type Scanner struct {
	workerCount   int
	engineVersion string
}

// NewScanner creates a scanner with one worker per available CPU.
func NewScanner(engineVersion string) *Scanner {
	return &Scanner{workerCount: runtime.GOMAXPROCS(0), engineVersion: engineVersion}
}

// WithWorkers returns a copy of s using n workers.
func (s *Scanner) WithWorkers(n int) *Scanner {
	if n < 1 {
		n = 1
	}
	c := *s
	c.workerCount = n
	return &c
}

// Scan evaluates every nonce in [NonceStart, NonceEnd]. It stops early when
// Limit hits are found or the timeout expires; in both cases the result holds
// the hits found so far, sorted by nonce.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	tolerance := req.Tolerance
	if tolerance == 0 && !req.Metric.integral() {
		tolerance = 1e-9
	}

	target := NewTargetEvaluator(req.TargetOp, req.TargetVal, req.TargetVal2, tolerance)
	metric := newEvaluator(req.Metric, req.GridSize, req.MineCount, req.Picks)

	// stop ends the scan once enough hits are in without marking it timed out.
	scanCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(scanCtx)

	jobs := make(chan scanJob, s.workerCount*2)
	hits := make(chan Hit, 1024)
	var evaluated atomic.Uint64

	g.Go(func() error {
		defer close(jobs)
		for cur := req.NonceStart; cur <= req.NonceEnd; {
			end := cur + batchSize - 1
			if end > req.NonceEnd || end < cur {
				end = req.NonceEnd
			}
			select {
			case jobs <- scanJob{start: cur, end: end}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if end == req.NonceEnd {
				break
			}
			cur = end + 1
		}
		return nil
	})

	for i := 0; i < s.workerCount; i++ {
		g.Go(func() error {
			for job := range jobs {
				for nonce := job.start; ; nonce++ {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					mines := engine.DeriveMines(req.Seeds.Server, req.Seeds.Client, nonce, req.GridSize, req.MineCount)
					evaluated.Add(1)
					if m := metric(mines); target.Matches(m) {
						select {
						case hits <- Hit{Nonce: nonce, Metric: m, Mines: mines}:
						case <-gctx.Done():
							return gctx.Err()
						}
					}
					if nonce == job.end {
						break
					}
				}
			}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(hits)
	}()

	collected := make([]Hit, 0, min(limit, 1024))
	limitReached := false
	for hit := range hits {
		if limitReached {
			continue
		}
		collected = append(collected, hit)
		if len(collected) >= limit {
			limitReached = true
			stop()
		}
	}

	err := g.Wait()
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].Nonce < collected[j].Nonce })

	summary := summarize(collected, evaluated.Load())
	summary.LimitReached = limitReached
	summary.TimedOut = timedOut && !limitReached

	return &ScanResult{
		Hits:          collected,
		Summary:       summary,
		EngineVersion: s.engineVersion,
		Echo:          req,
	}, nil
}

func summarize(hits []Hit, totalEvaluated uint64) Summary {
	summary := Summary{TotalEvaluated: totalEvaluated, HitsFound: len(hits)}
	if len(hits) == 0 {
		return summary
	}

	lo, hi, sum := hits[0].Metric, hits[0].Metric, 0.0
	for _, h := range hits {
		lo = min(lo, h.Metric)
		hi = max(hi, h.Metric)
		sum += h.Metric
	}
	summary.MinMetric = lo
	summary.MaxMetric = hi
	summary.MeanMetric = sum / float64(len(hits))
	return summary
}
