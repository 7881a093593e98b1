package api

import (
	"github.com/MJE43/pf-mines/internal/engine"
	"github.com/MJE43/pf-mines/internal/scan"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeValidation  = "validation_error"
	ErrTypeInvalidMove = "invalid_move"
	ErrTypeGameOver    = "game_over"

	// Lookup errors
	ErrTypeGameNotFound = "game_not_found"
	ErrTypeRunNotFound  = "run_not_found"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryGame       ErrorCategory = "game"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation:
		return CategoryValidation
	case ErrTypeInvalidMove, ErrTypeGameOver, ErrTypeGameNotFound, ErrTypeRunNotFound:
		return CategoryGame
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// Request bodies use pointers where a missing field must be told apart from a
// zero value.

// NewGameRequest is the body of POST /game/new.
type NewGameRequest struct {
	GridSize   *int   `json:"grid_size,omitempty"`
	MineCount  *int   `json:"mine_count,omitempty"`
	ClientSeed string `json:"client_seed,omitempty"`
}

// RevealRequest is the body of POST /game/reveal.
type RevealRequest struct {
	GameID   string `json:"game_id"`
	Position *int   `json:"position"`
}

// CashoutRequest is the body of POST /game/cashout.
type CashoutRequest struct {
	GameID string `json:"game_id"`
}

// VerifyRequest is the body of POST /game/verify. Nonce defaults to 0.
type VerifyRequest struct {
	ServerSeed *string `json:"server_seed"`
	ClientSeed *string `json:"client_seed"`
	Nonce      uint64  `json:"nonce"`
	GridSize   *int    `json:"grid_size"`
	MineCount  *int    `json:"mine_count"`
}

// ScanRequest represents a scan operation request. Save stores the run and its
// hits in the archive.
type ScanRequest struct {
	Seeds      engine.Seeds  `json:"seeds"`
	NonceStart uint64        `json:"nonce_start"`
	NonceEnd   uint64        `json:"nonce_end"`
	GridSize   int           `json:"grid_size"`
	MineCount  int           `json:"mine_count"`
	Metric     scan.Metric   `json:"metric"`
	Picks      []int         `json:"picks,omitempty"`
	TargetOp   scan.TargetOp `json:"target_op"`
	TargetVal  float64       `json:"target_val"`
	TargetVal2 float64       `json:"target_val2,omitempty"`
	Tolerance  float64       `json:"tolerance"`
	Limit      int           `json:"limit,omitempty"`
	TimeoutMs  int           `json:"timeout_ms,omitempty"`
	Save       bool          `json:"save,omitempty"`
}

// ScanResponse represents the complete scan response. The echo carries the
// server seed hash instead of the seed.
type ScanResponse struct {
	RunID         string       `json:"run_id,omitempty"`
	Hits          []scan.Hit   `json:"hits"`
	Summary       scan.Summary `json:"summary"`
	EngineVersion string       `json:"engine_version"`
	Echo          ScanEcho     `json:"echo"`
}

// ScanEcho is the scan request as reported back to the caller.
type ScanEcho struct {
	ServerSeedHash string        `json:"server_seed_hash"`
	ClientSeed     string        `json:"client_seed"`
	NonceStart     uint64        `json:"nonce_start"`
	NonceEnd       uint64        `json:"nonce_end"`
	GridSize       int           `json:"grid_size"`
	MineCount      int           `json:"mine_count"`
	Metric         scan.Metric   `json:"metric"`
	TargetOp       scan.TargetOp `json:"target_op"`
	TargetVal      float64       `json:"target_val"`
	TargetVal2     float64       `json:"target_val2,omitempty"`
	Limit          int           `json:"limit,omitempty"`
}

// SeedHashRequest represents a seed hashing request
type SeedHashRequest struct {
	ServerSeed string `json:"server_seed"`
}

// SeedHashResponse represents a seed hashing response
type SeedHashResponse struct {
	Hash          string `json:"hash"`
	EngineVersion string `json:"engine_version"`
}

// LedgerEntryResponse is a ledger record plus, once revealed, whether the
// disclosed seed matches the commitment.
type LedgerEntryResponse struct {
	GameID      string `json:"game_id"`
	SeedHash    string `json:"seed_hash"`
	CommittedAt string `json:"committed_at"`
	Revealed    bool   `json:"revealed"`
	ServerSeed  string `json:"server_seed,omitempty"`
	RevealedAt  string `json:"revealed_at,omitempty"`
	Valid       *bool  `json:"valid,omitempty"`
}
