// Package play is the application layer: it creates games, runs moves under
// the registry lock and publishes what happened.
package play

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/MJE43/pf-mines/internal/engine"
	"github.com/MJE43/pf-mines/internal/events"
	"github.com/MJE43/pf-mines/internal/games"
	"github.com/MJE43/pf-mines/internal/registry"
)

// ErrNotFound is returned for an unknown or evicted game id.
var ErrNotFound = registry.ErrNotFound

// Publisher receives events after each transition.
type Publisher interface {
	Publish(e events.Event) bool
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) bool { return true }

// Options configures a Service. Zero values pick the defaults.
type Options struct {
	DefaultGridSize  int
	DefaultMineCount int
	Random           io.Reader
	Clock            quartz.Clock
	Publisher        Publisher
	Logger           *log.Logger
}

// Service is safe for concurrent use.
type Service struct {
	games     *registry.Store
	publisher Publisher
	clock     quartz.Clock
	random    io.Reader
	logger    *log.Logger

	defaultGrid  int
	defaultMines int
}

// New builds a service around an existing registry.
func New(store *registry.Store, opts Options) *Service {
	s := &Service{
		games:        store,
		publisher:    opts.Publisher,
		clock:        opts.Clock,
		random:       opts.Random,
		logger:       opts.Logger,
		defaultGrid:  opts.DefaultGridSize,
		defaultMines: opts.DefaultMineCount,
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	s.logger = s.logger.WithPrefix("play")
	if s.defaultGrid == 0 {
		s.defaultGrid = games.DefaultGridSize
	}
	if s.defaultMines == 0 {
		s.defaultMines = games.DefaultMineCount
	}
	return s
}

// NewGameRequest leaves fields nil to take the service defaults.
type NewGameRequest struct {
	GridSize   *int   `json:"grid_size,omitempty"`
	MineCount  *int   `json:"mine_count,omitempty"`
	ClientSeed string `json:"client_seed,omitempty"`
}

// Created is returned to the player before any move. It carries the
// commitment but never the server seed.
type Created struct {
	GameID     string `json:"game_id"`
	GridSize   int    `json:"grid_size"`
	MineCount  int    `json:"mine_count"`
	SeedHash   string `json:"seed_hash"`
	ClientSeed string `json:"client_seed"`
}

func (s *Service) now() time.Time { return s.clock.Now("play") }

// NewGame creates, registers and announces a game.
func (s *Service) NewGame(_ context.Context, req NewGameRequest) (Created, error) {
	grid := s.defaultGrid
	if req.GridSize != nil {
		grid = *req.GridSize
	}
	mines := s.defaultMines
	if req.MineCount != nil {
		mines = *req.MineCount
	}

	g, err := games.New(grid, mines, req.ClientSeed,
		games.WithRandom(s.random),
		games.WithClock(s.now))
	if err != nil {
		return Created{}, err
	}

	id, err := s.games.Put(g)
	if err != nil {
		return Created{}, fmt.Errorf("failed to register game: %w", err)
	}

	snap := g.State()
	s.publisher.Publish(events.Created(id, snap))
	s.logger.Debug("game created", "game_id", id, "grid_size", grid, "mine_count", mines)

	return Created{
		GameID:     id,
		GridSize:   grid,
		MineCount:  mines,
		SeedHash:   snap.SeedHash,
		ClientSeed: snap.ClientSeed,
	}, nil
}

// Reveal uncovers position in game id.
func (s *Service) Reveal(_ context.Context, id string, position int) (games.RevealResult, error) {
	var (
		res  games.RevealResult
		snap games.Snapshot
	)
	err := s.games.Do(id, func(g *games.Game) error {
		var err error
		if res, err = g.Reveal(position); err != nil {
			return err
		}
		snap = g.State()
		return nil
	})
	if err != nil {
		return games.RevealResult{}, err
	}

	if res.Terminal {
		s.publisher.Publish(events.Terminated(id, &position, snap))
		s.logger.Debug("game over", "game_id", id, "outcome", snap.Outcome)
	} else {
		s.publisher.Publish(events.Revealed(id, position, snap, s.now()))
	}
	return res, nil
}

// Cashout ends game id at its current multiplier.
func (s *Service) Cashout(_ context.Context, id string) (games.CashoutResult, error) {
	var (
		res  games.CashoutResult
		snap games.Snapshot
	)
	err := s.games.Do(id, func(g *games.Game) error {
		var err error
		if res, err = g.Cashout(); err != nil {
			return err
		}
		snap = g.State()
		return nil
	})
	if err != nil {
		return games.CashoutResult{}, err
	}

	s.publisher.Publish(events.Terminated(id, nil, snap))
	s.logger.Debug("game cashed out", "game_id", id, "multiplier", res.Multiplier)
	return res, nil
}

// State returns a snapshot of game id.
func (s *Service) State(_ context.Context, id string) (games.Snapshot, error) {
	var snap games.Snapshot
	err := s.games.Do(id, func(g *games.Game) error {
		snap = g.State()
		return nil
	})
	return snap, err
}

// VerifyRequest is a stateless re-derivation request.
type VerifyRequest struct {
	ServerSeed string `json:"server_seed"`
	ClientSeed string `json:"client_seed"`
	Nonce      uint64 `json:"nonce"`
	GridSize   int    `json:"grid_size"`
	MineCount  int    `json:"mine_count"`
}

// Verify recomputes the board for a disclosed seed. It needs no game state.
func (s *Service) Verify(req VerifyRequest) (engine.Verification, error) {
	if err := games.ValidateBoard(req.GridSize, req.MineCount); err != nil {
		return engine.Verification{}, err
	}
	return engine.Verify(req.ServerSeed, req.ClientSeed, req.Nonce, req.GridSize, req.MineCount), nil
}

// ActiveGames is the number of games held in the registry.
func (s *Service) ActiveGames() int { return s.games.Len() }

// IsUsageError reports whether err is the caller's fault (bad board, bad move,
// finished game) as opposed to an unknown game or an internal failure.
func IsUsageError(err error) bool {
	for _, target := range []error{
		games.ErrInvalidGridSize,
		games.ErrInvalidMineCount,
		games.ErrGameOver,
		games.ErrInvalidPosition,
		games.ErrAlreadyRevealed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
