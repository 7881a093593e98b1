package games

import "fmt"

const (
	MinGridSize = 2
	MaxGridSize = 10

	DefaultGridSize  = 5
	DefaultMineCount = 3
)

// GameSpec describes the board parameters a client may choose.
type GameSpec struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	MinGridSize      int    `json:"min_grid_size"`
	MaxGridSize      int    `json:"max_grid_size"`
	DefaultGridSize  int    `json:"default_grid_size"`
	DefaultMineCount int    `json:"default_mine_count"`
	HouseEdge        string `json:"house_edge"`
}

// Spec returns metadata about the Mines game.
func Spec() GameSpec {
	return GameSpec{
		ID:               "mines",
		Name:             "Mines",
		MinGridSize:      MinGridSize,
		MaxGridSize:      MaxGridSize,
		DefaultGridSize:  DefaultGridSize,
		DefaultMineCount: DefaultMineCount,
		HouseEdge:        houseEdge.String(),
	}
}

// ValidateBoard checks the derivation preconditions: a grid between MinGridSize
// and MaxGridSize and at least one mine and one safe tile.
func ValidateBoard(gridSize, mineCount int) error {
	if gridSize < MinGridSize || gridSize > MaxGridSize {
		return fmt.Errorf("%w: grid size must be %d-%d, got %d", ErrInvalidGridSize, MinGridSize, MaxGridSize, gridSize)
	}
	total := gridSize * gridSize
	if mineCount < 1 || mineCount >= total {
		return fmt.Errorf("%w: mine count must be 1-%d, got %d", ErrInvalidMineCount, total-1, mineCount)
	}
	return nil
}
