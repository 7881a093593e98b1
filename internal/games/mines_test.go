package games

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/pf-mines/internal/engine"
)

func newFixtureGame(t *testing.T) *Game {
	t.Helper()
	g, err := New(3, 1, "fixed-client", WithServerSeed("fixed-server"))
	require.NoError(t, err)
	return g
}

func TestEndToEndScenario(t *testing.T) {
	g := newFixtureGame(t)
	commitment := g.CommitmentHash()
	assert.Equal(t, engine.CommitmentHash("fixed-server"), commitment)

	open := g.State()
	assert.False(t, open.GameOver)
	assert.Equal(t, OutcomeNone, open.Outcome)
	assert.Empty(t, open.ServerSeed, "server seed must stay hidden while open")
	assert.Nil(t, open.Mines)

	res, err := g.Reveal(4)
	require.NoError(t, err)
	assert.False(t, res.HitMine)
	assert.False(t, res.GameWon)
	assert.Equal(t, 1.09, res.Multiplier)
	assert.Empty(t, res.ServerSeed)

	res, err = g.Reveal(0)
	require.NoError(t, err)
	assert.True(t, res.HitMine)
	assert.True(t, res.Terminal)
	assert.Equal(t, []int{0}, res.Mines)
	assert.Equal(t, "fixed-server", res.ServerSeed)

	// Anyone holding the disclosed seed can check the commitment and the board.
	v := engine.Verify(res.ServerSeed, g.ClientSeed(), 0, 3, 1)
	assert.Equal(t, commitment, v.CommitmentHash)
	assert.Equal(t, res.Mines, v.Mines)

	final := g.State()
	assert.True(t, final.GameOver)
	assert.Equal(t, OutcomeMineHit, final.Outcome)
	assert.Equal(t, []int{0, 4}, final.Revealed)
	assert.Equal(t, "fixed-server", final.ServerSeed)
}

func TestNewValidatesBoard(t *testing.T) {
	tests := []struct {
		name      string
		gridSize  int
		mineCount int
		wantErr   error
	}{
		{"grid too small", 1, 1, ErrInvalidGridSize},
		{"grid too large", 11, 3, ErrInvalidGridSize},
		{"no mines", 5, 0, ErrInvalidMineCount},
		{"negative mines", 5, -1, ErrInvalidMineCount},
		{"no safe tile", 5, 25, ErrInvalidMineCount},
		{"smallest board", 2, 1, nil},
		{"fullest board", 10, 99, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.gridSize, tt.mineCount, "client", WithServerSeed("server"))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, g)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mineCount, len(g.mines))
		})
	}
}

func TestNewGeneratesSeeds(t *testing.T) {
	entropy := bytes.Repeat([]byte{0xab}, engine.ServerSeedBytes+engine.ClientSeedBytes)
	g, err := New(5, 3, "", WithRandom(bytes.NewReader(entropy)))
	require.NoError(t, err)

	assert.Len(t, g.serverSeed, 2*engine.ServerSeedBytes)
	assert.Len(t, g.ClientSeed(), 2*engine.ClientSeedBytes)
	assert.Equal(t, engine.CommitmentHash(g.serverSeed), g.CommitmentHash())
	assert.Equal(t, engine.DeriveMines(g.serverSeed, g.ClientSeed(), 0, 5, 3), g.mineList())
}

func TestNewEntropyFailure(t *testing.T) {
	_, err := New(5, 3, "", WithRandom(bytes.NewReader(nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server seed")
}

func TestRevealErrors(t *testing.T) {
	g := newFixtureGame(t)

	_, err := g.Reveal(-1)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = g.Reveal(9)
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = g.Reveal(3)
	require.NoError(t, err)
	_, err = g.Reveal(3)
	assert.ErrorIs(t, err, ErrAlreadyRevealed)

	// Rejected reveals leave the state untouched.
	s := g.State()
	assert.Equal(t, []int{3}, s.Revealed)
	assert.False(t, s.GameOver)
	assert.Equal(t, 1, g.SafeRevealed())
}

func TestTerminalGameRejectsEverything(t *testing.T) {
	finishers := map[string]func(*Game) error{
		"mine hit": func(g *Game) error {
			_, err := g.Reveal(0)
			return err
		},
		"cashout": func(g *Game) error {
			_, err := g.Cashout()
			return err
		},
		"all safe": func(g *Game) error {
			for pos := 1; pos < 9; pos++ {
				if _, err := g.Reveal(pos); err != nil {
					return err
				}
			}
			return nil
		},
	}

	for name, finish := range finishers {
		t.Run(name, func(t *testing.T) {
			g := newFixtureGame(t)
			require.NoError(t, finish(g))
			require.True(t, g.Terminal())
			before := g.State()

			for pos := 0; pos < 9; pos++ {
				_, err := g.Reveal(pos)
				assert.ErrorIs(t, err, ErrGameOver)
			}
			_, err := g.Cashout()
			assert.ErrorIs(t, err, ErrGameOver)

			assert.Equal(t, before, g.State())
		})
	}
}

func TestAllSafeRevealed(t *testing.T) {
	g := newFixtureGame(t)

	var last RevealResult
	for pos := 1; pos < 9; pos++ {
		res, err := g.Reveal(pos)
		require.NoError(t, err)
		assert.Equal(t, pos == 8, res.GameWon, "position %d", pos)
		last = res
	}

	assert.True(t, last.Terminal)
	assert.Equal(t, OutcomeAllSafe, last.Outcome)
	assert.Equal(t, 7.05, last.Multiplier)
	assert.Empty(t, last.ServerSeed, "the win result does not carry the seed")

	s := g.State()
	assert.True(t, s.GameOver)
	assert.Equal(t, OutcomeAllSafe, s.Outcome)
	assert.Equal(t, "fixed-server", s.ServerSeed)
	assert.Equal(t, []int{0}, s.Mines)
}

func TestCashout(t *testing.T) {
	g := newFixtureGame(t)
	for _, pos := range []int{1, 2} {
		_, err := g.Reveal(pos)
		require.NoError(t, err)
	}

	res, err := g.Cashout()
	require.NoError(t, err)
	assert.Equal(t, 1.21, res.Multiplier)
	assert.Equal(t, "fixed-server", res.ServerSeed)
	assert.Equal(t, []int{0}, res.Mines)
	assert.Equal(t, OutcomeCashout, g.Outcome())
}

func TestCashoutBeforeAnyReveal(t *testing.T) {
	g := newFixtureGame(t)
	res, err := g.Cashout()
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Multiplier)
}

func TestMonotonicReveal(t *testing.T) {
	g, err := New(10, 10, "monotonic", WithServerSeed("monotonic-server"))
	require.NoError(t, err)

	prev := g.State().Revealed
	for pos := 0; pos < 100 && !g.Terminal(); pos++ {
		_, err := g.Reveal(pos)
		require.NoError(t, err)
		cur := g.State().Revealed
		require.Len(t, cur, len(prev)+1)
		assert.Subset(t, cur, prev)
		prev = cur
	}
}

func TestMultiplierTable(t *testing.T) {
	tests := []struct {
		name   string
		tiles  int
		mines  int
		expect []float64
	}{
		{"5x5 three mines", 25, 3, []float64{1.00, 1.10, 1.22, 1.36, 1.53, 1.73, 1.98, 2.28, 2.65}},
		{"3x3 one mine", 9, 1, []float64{1.00, 1.09, 1.21, 1.37, 1.59, 1.93, 2.50, 3.64, 7.05}},
		{"10x10 ten mines", 100, 10, []float64{1.00, 1.08, 1.16, 1.26, 1.36, 1.47, 1.59, 1.73, 1.88}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, want := range tt.expect {
				assert.Equal(t, want, Multiplier(tt.tiles, tt.mines, k), "k=%d", k)
			}
		})
	}

	assert.Equal(t, 24.25, Multiplier(25, 24, 1))
	assert.Equal(t, "24.25", MultiplierDecimal(25, 24, 1).StringFixed(2))
}

func TestMultiplierCanDropBelowOne(t *testing.T) {
	// With one mine on a large board the house edge outweighs the odds early on.
	assert.Less(t, Multiplier(100, 1, 30), 1.0)
}

func TestGameMultiplierTracksSafeReveals(t *testing.T) {
	g, err := New(5, 3, "test_client_seed", WithServerSeed("test_server_seed"))
	require.NoError(t, err)
	require.Equal(t, []int{2, 11, 16}, g.mineList())

	safe := []int{0, 1, 3, 4, 5}
	want := []float64{1.10, 1.22, 1.36, 1.53, 1.73}
	for i, pos := range safe {
		res, err := g.Reveal(pos)
		require.NoError(t, err)
		assert.Equal(t, want[i], res.Multiplier)
		assert.Equal(t, want[i], g.State().Multiplier)
	}
}

func TestClockOption(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	g, err := New(3, 1, "fixed-client", WithServerSeed("fixed-server"), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	now = start.Add(time.Minute)
	_, err = g.Cashout()
	require.NoError(t, err)

	s := g.State()
	assert.Equal(t, start, s.CreatedAt)
	assert.Equal(t, start.Add(time.Minute), s.EndedAt)
}

func TestSnapshotJSONHidesSecretsWhileOpen(t *testing.T) {
	g := newFixtureGame(t)
	raw, err := json.Marshal(g.State())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "server_seed")
	assert.NotContains(t, fields, "mines")
	assert.NotContains(t, fields, "ended_at")
	assert.Equal(t, g.CommitmentHash(), fields["seed_hash"])
}

func TestSentinelsAreDistinct(t *testing.T) {
	all := []error{ErrInvalidGridSize, ErrInvalidMineCount, ErrGameOver, ErrInvalidPosition, ErrAlreadyRevealed}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v matches %v", a, b)
			}
		}
	}
}

func TestSpec(t *testing.T) {
	spec := Spec()
	assert.Equal(t, "mines", spec.ID)
	assert.Equal(t, "0.03", spec.HouseEdge)
	assert.NoError(t, ValidateBoard(spec.DefaultGridSize, spec.DefaultMineCount))
}
