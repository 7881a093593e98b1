// Package events fans game transitions out to observers after the transition
// has already happened.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/pf-mines/internal/games"
)

// Kind names a game transition.
type Kind string

const (
	KindCreated    Kind = "game.created"
	KindRevealed   Kind = "game.revealed"
	KindTerminated Kind = "game.terminated"
)

// Event describes one transition of one game. ServerSeed and State are only
// set on KindTerminated.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Kind       Kind            `json:"kind"`
	GameID     string          `json:"game_id"`
	Commitment string          `json:"seed_hash"`
	ServerSeed string          `json:"server_seed,omitempty"`
	Outcome    games.Outcome   `json:"outcome"`
	Multiplier float64         `json:"multiplier"`
	Position   *int            `json:"position,omitempty"`
	At         time.Time       `json:"at"`
	State      *games.Snapshot `json:"state,omitempty"`
}

// New stamps an event with a fresh id.
func New(kind Kind, gameID string, at time.Time) Event {
	return Event{ID: uuid.New(), Kind: kind, GameID: gameID, At: at, Outcome: games.OutcomeNone}
}

// Created builds the event for a new game.
func Created(gameID string, s games.Snapshot) Event {
	e := New(KindCreated, gameID, s.CreatedAt)
	e.Commitment = s.SeedHash
	e.Multiplier = s.Multiplier
	return e
}

// Revealed builds the event for a safe reveal that left the game open.
func Revealed(gameID string, position int, s games.Snapshot, at time.Time) Event {
	e := New(KindRevealed, gameID, at)
	e.Commitment = s.SeedHash
	e.Multiplier = s.Multiplier
	e.Position = &position
	return e
}

// Terminated builds the event for a game that just ended. position is nil for
// a cashout.
func Terminated(gameID string, position *int, s games.Snapshot) Event {
	e := New(KindTerminated, gameID, s.EndedAt)
	e.Commitment = s.SeedHash
	e.ServerSeed = s.ServerSeed
	e.Outcome = s.Outcome
	e.Multiplier = s.Multiplier
	e.Position = position
	e.State = &s
	return e
}
