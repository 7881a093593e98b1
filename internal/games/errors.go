package games

import "errors"

// Usage errors returned by the Mines state machine. None of them are retryable.
var (
	ErrInvalidGridSize  = errors.New("invalid grid size")
	ErrInvalidMineCount = errors.New("invalid mine count")
	ErrGameOver         = errors.New("game is over")
	ErrInvalidPosition  = errors.New("invalid position")
	ErrAlreadyRevealed  = errors.New("already revealed")
)
