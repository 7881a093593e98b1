package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Observer receives published events on the bus goroutine.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

// DefaultBufferSize is the queue length used when NewBus gets size <= 0.
const DefaultBufferSize = 256

// Bus delivers events to observers in publish order from a single goroutine.
// Publish never blocks: when the queue is full the event is dropped and
// counted.
type Bus struct {
	logger *log.Logger
	queue  chan Event

	mu        sync.RWMutex
	observers []Observer
	closed    bool

	dropped   atomic.Uint64
	delivered atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBus starts the dispatch goroutine. Close stops it.
func NewBus(size int, logger *log.Logger) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger: logger.WithPrefix("events"),
		queue:  make(chan Event, size),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe adds an observer for events published after the call.
func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Publish queues e. It reports false if e was dropped.
func (b *Bus) Publish(e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.dropped.Add(1)
		return false
	}

	select {
	case b.queue <- e:
		return true
	default:
		b.dropped.Add(1)
		b.logger.Warn("event queue full, dropping event", "kind", e.Kind, "game_id", e.GameID)
		return false
	}
}

// Dropped is the number of events discarded because the queue was full or the
// bus was closed.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Delivered is the number of events handed to observers.
func (b *Bus) Delivered() uint64 { return b.delivered.Load() }

// Close drains queued events, then stops the dispatcher. It is safe to call
// more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	<-b.done
	b.cancel()
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.queue {
		b.mu.RLock()
		observers := b.observers
		b.mu.RUnlock()

		for _, o := range observers {
			b.deliver(o, e)
		}
		b.delivered.Add(1)
	}
}

func (b *Bus) deliver(o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked", "kind", e.Kind, "game_id", e.GameID, "panic", r)
		}
	}()
	o.Observe(b.ctx, e)
}
