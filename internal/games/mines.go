package games

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/MJE43/pf-mines/internal/engine"
)

// Outcome is how a game ended.
type Outcome string

const (
	OutcomeNone    Outcome = "none"
	OutcomeMineHit Outcome = "mine_hit"
	OutcomeCashout Outcome = "cashed_out"
	OutcomeAllSafe Outcome = "all_safe_revealed"
)

// Interactive games always derive with nonce 0; each game has its own seeds.
const interactiveNonce = 0

// Game is one Mines session.
//
// The mine set is derived when the game is created and never changes. A game
// starts open and moves to terminal exactly once; every operation on a terminal
// game fails with ErrGameOver. Game is not safe for concurrent use: callers
// that share a game between goroutines must serialize Reveal and Cashout.
type Game struct {
	gridSize   int
	mineCount  int
	serverSeed string
	clientSeed string
	nonce      uint64
	commitment string

	mines    map[int]struct{}
	revealed map[int]struct{}
	safe     int

	terminal bool
	outcome  Outcome

	now       func() time.Time
	createdAt time.Time
	endedAt   time.Time
}

type options struct {
	random     io.Reader
	serverSeed string
	now        func() time.Time
}

// Option configures New.
type Option func(*options)

// WithRandom sets the entropy source for generated seeds (default crypto/rand).
func WithRandom(r io.Reader) Option {
	return func(o *options) { o.random = r }
}

// WithServerSeed fixes the server seed instead of generating one. Only replays
// and tests should use it: a predictable server seed breaks fairness.
func WithServerSeed(seed string) Option {
	return func(o *options) { o.serverSeed = seed }
}

// WithClock overrides the time source used for CreatedAt and EndedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates an open game. An empty clientSeed is replaced with a random one.
func New(gridSize, mineCount int, clientSeed string, opts ...Option) (*Game, error) {
	if err := ValidateBoard(gridSize, mineCount); err != nil {
		return nil, err
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	serverSeed := o.serverSeed
	if serverSeed == "" {
		var err error
		if serverSeed, err = engine.NewServerSeed(o.random); err != nil {
			return nil, fmt.Errorf("failed to generate server seed: %w", err)
		}
	}
	if clientSeed == "" {
		var err error
		if clientSeed, err = engine.NewClientSeed(o.random); err != nil {
			return nil, fmt.Errorf("failed to generate client seed: %w", err)
		}
	}

	positions := engine.DeriveMines(serverSeed, clientSeed, interactiveNonce, gridSize, mineCount)
	mines := make(map[int]struct{}, len(positions))
	for _, pos := range positions {
		mines[pos] = struct{}{}
	}

	return &Game{
		gridSize:   gridSize,
		mineCount:  mineCount,
		serverSeed: serverSeed,
		clientSeed: clientSeed,
		nonce:      interactiveNonce,
		commitment: engine.CommitmentHash(serverSeed),
		mines:      mines,
		revealed:   make(map[int]struct{}),
		outcome:    OutcomeNone,
		now:        o.now,
		createdAt:  o.now(),
	}, nil
}

// RevealResult is the response to a successful reveal.
type RevealResult struct {
	Position   int     `json:"position"`
	HitMine    bool    `json:"hit_mine"`
	Multiplier float64 `json:"multiplier,omitempty"`
	GameWon    bool    `json:"game_won"`
	Terminal   bool    `json:"-"`
	Outcome    Outcome `json:"-"`
	Mines      []int   `json:"mines,omitempty"`
	ServerSeed string  `json:"server_seed,omitempty"`
}

// Reveal uncovers a tile. Hitting a mine ends the game and discloses the server
// seed and the mine set. Revealing the last safe tile ends the game as won.
func (g *Game) Reveal(position int) (RevealResult, error) {
	if g.terminal {
		return RevealResult{}, ErrGameOver
	}
	if position < 0 || position >= g.TotalTiles() {
		return RevealResult{}, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPosition, position, g.TotalTiles())
	}
	if _, seen := g.revealed[position]; seen {
		return RevealResult{}, fmt.Errorf("%w: %d", ErrAlreadyRevealed, position)
	}

	g.revealed[position] = struct{}{}

	if _, mine := g.mines[position]; mine {
		g.finish(OutcomeMineHit)
		return RevealResult{
			Position:   position,
			HitMine:    true,
			Terminal:   true,
			Outcome:    OutcomeMineHit,
			Mines:      g.mineList(),
			ServerSeed: g.serverSeed,
		}, nil
	}

	g.safe++
	won := g.safe == g.TotalTiles()-g.mineCount
	if won {
		g.finish(OutcomeAllSafe)
	}

	return RevealResult{
		Position:   position,
		Multiplier: g.Multiplier(),
		GameWon:    won,
		Terminal:   won,
		Outcome:    g.outcome,
	}, nil
}

// CashoutResult is the response to a successful cashout.
type CashoutResult struct {
	Multiplier float64 `json:"multiplier"`
	ServerSeed string  `json:"server_seed"`
	Mines      []int   `json:"mines"`
}

// Cashout ends an open game at the current multiplier and discloses the seed.
func (g *Game) Cashout() (CashoutResult, error) {
	if g.terminal {
		return CashoutResult{}, ErrGameOver
	}

	multiplier := g.Multiplier()
	g.finish(OutcomeCashout)

	return CashoutResult{
		Multiplier: multiplier,
		ServerSeed: g.serverSeed,
		Mines:      g.mineList(),
	}, nil
}

// Snapshot is a read-only view of a game. ServerSeed and Mines are only set
// once the game is terminal.
type Snapshot struct {
	GridSize   int       `json:"grid_size"`
	MineCount  int       `json:"mine_count"`
	SeedHash   string    `json:"seed_hash"`
	ClientSeed string    `json:"client_seed"`
	Nonce      uint64    `json:"nonce"`
	Revealed   []int     `json:"revealed"`
	GameOver   bool      `json:"game_over"`
	Outcome    Outcome   `json:"outcome"`
	Multiplier float64   `json:"multiplier"`
	ServerSeed string    `json:"server_seed,omitempty"`
	Mines      []int     `json:"mines,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	EndedAt    time.Time `json:"ended_at,omitzero"`
}

// State returns a snapshot of the game.
func (g *Game) State() Snapshot {
	revealed := make([]int, 0, len(g.revealed))
	for pos := range g.revealed {
		revealed = append(revealed, pos)
	}
	sort.Ints(revealed)

	s := Snapshot{
		GridSize:   g.gridSize,
		MineCount:  g.mineCount,
		SeedHash:   g.commitment,
		ClientSeed: g.clientSeed,
		Nonce:      g.nonce,
		Revealed:   revealed,
		GameOver:   g.terminal,
		Outcome:    g.outcome,
		Multiplier: g.Multiplier(),
		CreatedAt:  g.createdAt,
	}
	if g.terminal {
		s.ServerSeed = g.serverSeed
		s.Mines = g.mineList()
		s.EndedAt = g.endedAt
	}
	return s
}

// Multiplier is the payout multiplier for the safe tiles revealed so far.
func (g *Game) Multiplier() float64 {
	return Multiplier(g.TotalTiles(), g.mineCount, g.safe)
}

// CommitmentHash is the published hash of the server seed.
func (g *Game) CommitmentHash() string { return g.commitment }

// ClientSeed returns the client seed the board was derived with.
func (g *Game) ClientSeed() string { return g.clientSeed }

func (g *Game) GridSize() int { return g.gridSize }

func (g *Game) MineCount() int { return g.mineCount }

func (g *Game) TotalTiles() int { return g.gridSize * g.gridSize }

func (g *Game) SafeRevealed() int { return g.safe }

func (g *Game) Terminal() bool { return g.terminal }

func (g *Game) Outcome() Outcome { return g.outcome }

// CreatedAt reports when the game was created.
func (g *Game) CreatedAt() time.Time { return g.createdAt }

func (g *Game) finish(outcome Outcome) {
	g.terminal = true
	g.outcome = outcome
	g.endedAt = g.now()
}

func (g *Game) mineList() []int {
	out := make([]int, 0, len(g.mines))
	for pos := range g.mines {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}
