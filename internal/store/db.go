package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a game or run id is unknown.
var ErrNotFound = errors.New("record not found")

// DB is the archive of finished games and saved nonce scans.
type DB interface {
	Close() error
	Migrate() error

	SaveGame(game *GameRecord) error
	GetGame(id string) (*GameRecord, error)
	ListGames(query GamesQuery) (*GamesList, error)

	SaveRun(run *Run) error
	SaveHits(runID string, hits []Hit) error
	GetRun(id string) (*Run, error)
	ListRuns(query RunsQuery) (*RunsList, error)
	GetRunHits(runID string, page, perPage int) (*HitsPage, error)
}

// GameRecord is a finished game with everything needed to re-verify it.
type GameRecord struct {
	ID             string    `json:"id" db:"id"`
	ServerSeed     string    `json:"server_seed" db:"server_seed"`
	ServerSeedHash string    `json:"server_seed_hash" db:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed" db:"client_seed"`
	Nonce          uint64    `json:"nonce" db:"nonce"`
	GridSize       int       `json:"grid_size" db:"grid_size"`
	MineCount      int       `json:"mine_count" db:"mine_count"`
	Mines          []int     `json:"mines" db:"mines"`       // stored as JSON
	Revealed       []int     `json:"revealed" db:"revealed"` // stored as JSON
	Outcome        string    `json:"outcome" db:"outcome"`
	Multiplier     float64   `json:"multiplier" db:"multiplier"`
	EngineVersion  string    `json:"engine_version" db:"engine_version"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	EndedAt        time.Time `json:"ended_at" db:"ended_at"`
}

// GamesQuery represents query parameters for listing games
type GamesQuery struct {
	Outcome string `json:"outcome,omitempty"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// GamesList represents a paginated games response
type GamesList struct {
	Games      []GameRecord `json:"games"`
	TotalCount int          `json:"totalCount"`
	Page       int          `json:"page"`
	PerPage    int          `json:"perPage"`
	TotalPages int          `json:"totalPages"`
}

// Run is a saved nonce scan. The server seed itself is never stored, only its
// hash.
type Run struct {
	ID             string    `json:"id" db:"id"`
	ServerSeedHash string    `json:"server_seed_hash" db:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed" db:"client_seed"`
	NonceStart     uint64    `json:"nonce_start" db:"nonce_start"`
	NonceEnd       uint64    `json:"nonce_end" db:"nonce_end"`
	GridSize       int       `json:"grid_size" db:"grid_size"`
	MineCount      int       `json:"mine_count" db:"mine_count"`
	Metric         string    `json:"metric" db:"metric"`
	TargetOp       string    `json:"target_op" db:"target_op"`
	TargetVal      float64   `json:"target_val" db:"target_val"`
	TargetVal2     float64   `json:"target_val2" db:"target_val2"`
	Tolerance      float64   `json:"tolerance" db:"tolerance"`
	HitLimit       int       `json:"hit_limit" db:"hit_limit"`
	TimedOut       bool      `json:"timed_out" db:"timed_out"`
	HitCount       int       `json:"hit_count" db:"hit_count"`
	TotalEvaluated uint64    `json:"total_evaluated" db:"total_evaluated"`
	SummaryMin     *float64  `json:"summary_min" db:"summary_min"`
	SummaryMax     *float64  `json:"summary_max" db:"summary_max"`
	SummarySum     *float64  `json:"summary_sum" db:"summary_sum"`
	SummaryCount   int       `json:"summary_count" db:"summary_count"`
	EngineVersion  string    `json:"engine_version" db:"engine_version"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// RunsQuery represents query parameters for listing runs
type RunsQuery struct {
	ClientSeed string `json:"client_seed,omitempty"`
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
}

// RunsList represents paginated runs response
type RunsList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// Hit is one nonce that matched a scan target.
type Hit struct {
	ID     int64   `json:"id" db:"id"`
	RunID  string  `json:"run_id" db:"run_id"`
	Nonce  uint64  `json:"nonce" db:"nonce"`
	Metric float64 `json:"metric" db:"metric"`
	Mines  []int   `json:"mines" db:"mines"` // stored as JSON
}

// HitWithDelta represents a hit with calculated delta nonce
type HitWithDelta struct {
	Hit
	DeltaNonce *uint64 `json:"delta_nonce,omitempty"`
}

// HitsPage represents paginated hits response with delta nonce calculation
type HitsPage struct {
	Hits       []HitWithDelta `json:"hits"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
	TotalPages int            `json:"totalPages"`
}

func totalPages(count, perPage int) int {
	return (count + perPage - 1) / perPage
}
