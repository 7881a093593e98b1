package events

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/MJE43/pf-mines/internal/ledger"
	"github.com/MJE43/pf-mines/internal/store"
)

// LedgerObserver commits a game's seed hash when it is created and reveals the
// seed when it ends. Failures are logged and never reach the game.
type LedgerObserver struct {
	Ledger  ledger.Ledger
	Logger  *log.Logger
	Timeout time.Duration
}

func (o *LedgerObserver) Observe(ctx context.Context, e Event) {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	var (
		receipt ledger.Receipt
		err     error
	)
	switch e.Kind {
	case KindCreated:
		receipt, err = o.Ledger.Commit(ctx, e.GameID, e.Commitment)
	case KindTerminated:
		receipt, err = o.Ledger.Reveal(ctx, e.GameID, e.ServerSeed)
	default:
		return
	}

	if errors.Is(err, ledger.ErrDisabled) {
		return
	}
	if err != nil {
		o.Logger.Error("ledger write failed", "kind", e.Kind, "game_id", e.GameID, "error", err)
		return
	}
	o.Logger.Debug("ledger write", "kind", e.Kind, "game_id", e.GameID, "sequence", receipt.Sequence)
}

// GameSaver is the part of store.DB the archive observer needs.
type GameSaver interface {
	SaveGame(game *store.GameRecord) error
}

// ArchiveObserver writes every finished game to the archive.
type ArchiveObserver struct {
	Store         GameSaver
	Logger        *log.Logger
	EngineVersion string
}

func (o *ArchiveObserver) Observe(_ context.Context, e Event) {
	if e.Kind != KindTerminated || e.State == nil {
		return
	}
	rec := GameRecordFromEvent(e, o.EngineVersion)
	if err := o.Store.SaveGame(rec); err != nil {
		o.Logger.Error("archive write failed", "game_id", e.GameID, "error", err)
	}
}

// GameRecordFromEvent flattens a terminated event into an archive row.
func GameRecordFromEvent(e Event, engineVersion string) *store.GameRecord {
	s := e.State
	return &store.GameRecord{
		ID:             e.GameID,
		ServerSeed:     s.ServerSeed,
		ServerSeedHash: s.SeedHash,
		ClientSeed:     s.ClientSeed,
		Nonce:          s.Nonce,
		GridSize:       s.GridSize,
		MineCount:      s.MineCount,
		Mines:          s.Mines,
		Revealed:       s.Revealed,
		Outcome:        string(s.Outcome),
		Multiplier:     s.Multiplier,
		EngineVersion:  engineVersion,
		CreatedAt:      s.CreatedAt,
		EndedAt:        s.EndedAt,
	}
}
