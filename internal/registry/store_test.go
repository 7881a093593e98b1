package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/pf-mines/internal/games"
)

func newGame(t *testing.T, serverSeed string) *games.Game {
	t.Helper()
	g, err := games.New(3, 1, "client", games.WithServerSeed(serverSeed))
	require.NoError(t, err)
	return g
}

func TestPutAndDo(t *testing.T) {
	s := New(quartz.NewMock(t))
	g := newGame(t, "fixed-server")

	id, err := s.Put(g)
	require.NoError(t, err)
	assert.Len(t, id, IDLength)
	assert.Equal(t, g.CommitmentHash()[:IDLength], id)
	assert.Equal(t, 1, s.Len())

	var seen *games.Game
	require.NoError(t, s.Do(id, func(g *games.Game) error {
		seen = g
		return nil
	}))
	assert.Same(t, g, seen)
}

func TestPutDuplicate(t *testing.T) {
	s := New(quartz.NewMock(t))
	_, err := s.Put(newGame(t, "same"))
	require.NoError(t, err)

	_, err = s.Put(newGame(t, "same"))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, s.Len())
}

func TestDoUnknownAndPropagatesError(t *testing.T) {
	s := New(quartz.NewMock(t))
	err := s.Do("0123456789abcdef", func(*games.Game) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := s.Put(newGame(t, "seed"))
	require.NoError(t, err)
	err = s.Do(id, func(g *games.Game) error {
		_, err := g.Reveal(99)
		return err
	})
	assert.ErrorIs(t, err, games.ErrInvalidPosition)
}

func TestDelete(t *testing.T) {
	s := New(quartz.NewMock(t))
	id, err := s.Put(newGame(t, "seed"))
	require.NoError(t, err)

	assert.True(t, s.Delete(id))
	assert.False(t, s.Delete(id))
	assert.ErrorIs(t, s.Do(id, func(*games.Game) error { return nil }), ErrNotFound)
}

func TestSweepEvictsIdleGames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	s := New(clock)

	stale, err := s.Put(newGame(t, "stale"))
	require.NoError(t, err)
	clock.Advance(20 * time.Minute).MustWait(ctx)

	fresh, err := s.Put(newGame(t, "fresh"))
	require.NoError(t, err)
	clock.Advance(15 * time.Minute).MustWait(ctx)

	assert.Equal(t, 1, s.Sweep(30*time.Minute))
	assert.ErrorIs(t, s.Do(stale, func(*games.Game) error { return nil }), ErrNotFound)
	assert.NoError(t, s.Do(fresh, func(*games.Game) error { return nil }))

	// Do refreshed the survivor.
	clock.Advance(29 * time.Minute).MustWait(ctx)
	assert.Equal(t, 0, s.Sweep(30*time.Minute))
	assert.Equal(t, 1, s.Len())
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	s := New(quartz.NewReal())
	_, err := s.Put(newGame(t, "seed"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, 5*time.Millisecond, 0, func(n int) { swept <- n })
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	total := 0
	for len(swept) > 0 {
		total += <-swept
	}
	assert.Equal(t, 1, total)
}

func TestConcurrentRevealsAreSerialized(t *testing.T) {
	s := New(quartz.NewReal())
	g, err := games.New(10, 1, "client", games.WithServerSeed("concurrent"))
	require.NoError(t, err)
	id, err := s.Put(g)
	require.NoError(t, err)

	// Every goroutine races for the same tile; exactly one reveal succeeds.
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		others    []error
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Do(id, func(g *games.Game) error {
				_, err := g.Reveal(50)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range others {
		assert.True(t, errors.Is(err, games.ErrAlreadyRevealed) || errors.Is(err, games.ErrGameOver), fmt.Sprint(err))
	}
}
