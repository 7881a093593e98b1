package events

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/pf-mines/internal/games"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(8, testLogger())
	rec := &recorder{}
	bus.Subscribe(rec)

	now := time.Now()
	require.True(t, bus.Publish(New(KindCreated, "g", now)))
	require.True(t, bus.Publish(New(KindRevealed, "g", now)))
	require.True(t, bus.Publish(New(KindTerminated, "g", now)))
	bus.Close()

	assert.Equal(t, []Kind{KindCreated, KindRevealed, KindTerminated}, rec.kinds())
	assert.Equal(t, uint64(3), bus.Delivered())
	assert.Zero(t, bus.Dropped())
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus(1, testLogger())
	release := make(chan struct{})
	bus.Subscribe(ObserverFunc(func(context.Context, Event) { <-release }))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.Publish(New(KindRevealed, "g", time.Now()))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a stalled observer")
	}
	assert.NotZero(t, bus.Dropped())

	close(release)
	bus.Close()
}

func TestBusSurvivesPanickingObserver(t *testing.T) {
	bus := NewBus(4, testLogger())
	rec := &recorder{}
	bus.Subscribe(ObserverFunc(func(context.Context, Event) { panic("boom") }))
	bus.Subscribe(rec)

	bus.Publish(New(KindCreated, "g", time.Now()))
	bus.Close()

	assert.Equal(t, []Kind{KindCreated}, rec.kinds())
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(4, testLogger())
	bus.Close()
	bus.Close()

	assert.False(t, bus.Publish(New(KindCreated, "g", time.Now())))
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestTerminatedEventCarriesDisclosure(t *testing.T) {
	g, err := games.New(3, 1, "fixed-client", games.WithServerSeed("fixed-server"))
	require.NoError(t, err)
	_, err = g.Reveal(0)
	require.NoError(t, err)

	pos := 0
	e := Terminated("abc", &pos, g.State())
	assert.Equal(t, KindTerminated, e.Kind)
	assert.Equal(t, "fixed-server", e.ServerSeed)
	assert.Equal(t, games.OutcomeMineHit, e.Outcome)
	require.NotNil(t, e.State)
	assert.Equal(t, []int{0}, e.State.Mines)

	created := Created("abc", g.State())
	assert.Empty(t, created.ServerSeed)
	assert.Nil(t, created.State)
	assert.NotEqual(t, e.ID, created.ID)
}
