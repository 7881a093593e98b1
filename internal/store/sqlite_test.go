package store

import (
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func testGame(id, outcome string, ended time.Time) *GameRecord {
	return &GameRecord{
		ID:             id,
		ServerSeed:     "server-" + id,
		ServerSeedHash: "hash-" + id,
		ClientSeed:     "client-" + id,
		GridSize:       5,
		MineCount:      3,
		Mines:          []int{2, 11, 16},
		Revealed:       []int{0, 1, 2},
		Outcome:        outcome,
		Multiplier:     1.22,
		EngineVersion:  "test",
		CreatedAt:      ended.Add(-time.Minute),
		EndedAt:        ended,
	}
}

func TestSaveAndGetGame(t *testing.T) {
	db := newTestDB(t)
	ended := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	want := testGame("0123456789abcdef", "mine_hit", ended)
	if err := db.SaveGame(want); err != nil {
		t.Fatalf("Failed to save game: %v", err)
	}

	got, err := db.GetGame(want.ID)
	if err != nil {
		t.Fatalf("Failed to get game: %v", err)
	}

	if got.ServerSeed != want.ServerSeed || got.ClientSeed != want.ClientSeed {
		t.Errorf("seeds not preserved: got %q/%q", got.ServerSeed, got.ClientSeed)
	}
	if len(got.Mines) != 3 || got.Mines[1] != 11 {
		t.Errorf("Expected mines %v, got %v", want.Mines, got.Mines)
	}
	if len(got.Revealed) != 3 {
		t.Errorf("Expected 3 revealed positions, got %v", got.Revealed)
	}
	if got.Outcome != "mine_hit" || got.Multiplier != 1.22 {
		t.Errorf("unexpected outcome/multiplier: %s %v", got.Outcome, got.Multiplier)
	}
	if !got.EndedAt.Equal(ended) {
		t.Errorf("Expected ended_at %v, got %v", ended, got.EndedAt)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", want.CreatedAt, got.CreatedAt)
	}
}

func TestGetGameNotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetGame("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSaveGameRequiresID(t *testing.T) {
	db := newTestDB(t)
	if err := db.SaveGame(&GameRecord{}); err == nil {
		t.Error("Expected error for game without id")
	}
}

func TestSaveGameDuplicate(t *testing.T) {
	db := newTestDB(t)
	g := testGame("dup", "cashed_out", time.Now())
	if err := db.SaveGame(g); err != nil {
		t.Fatalf("Failed to save game: %v", err)
	}
	if err := db.SaveGame(g); err == nil {
		t.Error("Expected error saving the same game twice")
	}
}

func TestListGames(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	fixtures := []*GameRecord{
		testGame("g1", "mine_hit", base),
		testGame("g2", "cashed_out", base.Add(time.Hour)),
		testGame("g3", "mine_hit", base.Add(2*time.Hour)),
	}
	for _, g := range fixtures {
		if err := db.SaveGame(g); err != nil {
			t.Fatalf("Failed to save game %s: %v", g.ID, err)
		}
	}

	result, err := db.ListGames(GamesQuery{Page: 1, PerPage: 10})
	if err != nil {
		t.Fatalf("Failed to list games: %v", err)
	}
	if result.TotalCount != 3 || len(result.Games) != 3 {
		t.Fatalf("Expected 3 games, got total=%d len=%d", result.TotalCount, len(result.Games))
	}
	if result.Games[0].ID != "g3" {
		t.Errorf("Expected most recent game first, got %s", result.Games[0].ID)
	}

	result, err = db.ListGames(GamesQuery{Outcome: "mine_hit"})
	if err != nil {
		t.Fatalf("Failed to list games by outcome: %v", err)
	}
	if result.TotalCount != 2 {
		t.Errorf("Expected 2 mine_hit games, got %d", result.TotalCount)
	}
	for _, g := range result.Games {
		if g.Outcome != "mine_hit" {
			t.Errorf("Expected only mine_hit games, got %s", g.Outcome)
		}
	}
	if result.PerPage != 50 || result.Page != 1 {
		t.Errorf("Expected default pagination, got page=%d perPage=%d", result.Page, result.PerPage)
	}

	result, err = db.ListGames(GamesQuery{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("Failed to list page 2: %v", err)
	}
	if len(result.Games) != 1 || result.TotalPages != 2 {
		t.Errorf("Expected 1 game on page 2 of 2, got %d games, %d pages", len(result.Games), result.TotalPages)
	}
	if result.Games[0].ID != "g1" {
		t.Errorf("Expected oldest game on last page, got %s", result.Games[0].ID)
	}
}

func TestListGamesEmpty(t *testing.T) {
	db := newTestDB(t)
	result, err := db.ListGames(GamesQuery{})
	if err != nil {
		t.Fatalf("Failed to list games: %v", err)
	}
	if result.Games == nil || len(result.Games) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", result.Games)
	}
}
