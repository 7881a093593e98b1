// Package ledger records seed commitments outside the game process so a player
// can check, after the fact, that the disclosed server seed is the one that was
// committed before play.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/quartz"

	"github.com/MJE43/pf-mines/internal/engine"
)

var (
	ErrAlreadyCommitted  = errors.New("game already committed")
	ErrNotCommitted      = errors.New("game not committed")
	ErrAlreadyRevealed   = errors.New("game already revealed")
	ErrSeedMismatch      = errors.New("server seed does not match commitment")
	ErrInvalidCommitment = errors.New("commitment must be 64 hex characters")
	ErrNotFound          = errors.New("game not found in ledger")
	ErrDisabled          = errors.New("ledger disabled")
)

// Ledger is a commit-once, reveal-once record of server seed commitments.
type Ledger interface {
	Commit(ctx context.Context, gameID, commitment string) (Receipt, error)
	Reveal(ctx context.Context, gameID, serverSeed string) (Receipt, error)
	Get(ctx context.Context, gameID string) (Record, error)
	Info() Info
	Close() error
}

// Record is the ledger's view of one game.
type Record struct {
	GameID      string    `json:"game_id"`
	SeedHash    string    `json:"seed_hash"`
	CommittedAt time.Time `json:"committed_at"`
	Revealed    bool      `json:"revealed"`
	ServerSeed  string    `json:"server_seed,omitempty"`
	RevealedAt  time.Time `json:"revealed_at,omitzero"`
}

// Receipt acknowledges a write. Sequence increases with every write accepted by
// the backend.
type Receipt struct {
	GameID   string    `json:"game_id"`
	Sequence uint64    `json:"sequence"`
	At       time.Time `json:"at"`
}

// Info describes the configured backend.
type Info struct {
	Backend string `json:"backend"`
	Enabled bool   `json:"enabled"`
	Target  string `json:"target,omitempty"`
}

// VerifyRecord reports whether serverSeed hashes to the commitment in rec.
func VerifyRecord(rec Record, serverSeed string) bool {
	return engine.MatchesCommitment(serverSeed, rec.SeedHash)
}

// Config selects and configures a backend.
type Config struct {
	Backend       string
	BoltPath      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Backend names accepted by Open.
const (
	BackendNone  = "none"
	BackendBolt  = "bolt"
	BackendRedis = "redis"
)

// Open builds the backend named by cfg.Backend. An empty backend means none.
func Open(ctx context.Context, cfg Config, clock quartz.Clock) (Ledger, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendBolt:
		l, err := OpenBolt(cfg.BoltPath, clock)
		if err != nil {
			return nil, err
		}
		return l, nil
	case BackendRedis:
		l, err := OpenRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, clock)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func normalizeCommitment(commitment string) (string, error) {
	c := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(commitment, "0x"), "0X"))
	if len(c) != 64 {
		return "", ErrInvalidCommitment
	}
	for _, r := range c {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", ErrInvalidCommitment
		}
	}
	return c, nil
}

// checkReveal applies the reveal rules shared by every backend.
func checkReveal(rec Record, serverSeed string) error {
	if rec.Revealed {
		return ErrAlreadyRevealed
	}
	if !VerifyRecord(rec, serverSeed) {
		return ErrSeedMismatch
	}
	return nil
}

func realClock(clock quartz.Clock) quartz.Clock {
	if clock == nil {
		return quartz.NewReal()
	}
	return clock
}
