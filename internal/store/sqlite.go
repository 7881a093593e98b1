package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens the archive at path. ":memory:" gives a private in-memory
// database.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations. It is safe to run repeatedly.
func (s *SQLiteDB) Migrate() error {
	baseMigrations := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			server_seed TEXT NOT NULL,
			server_seed_hash TEXT NOT NULL,
			client_seed TEXT NOT NULL,
			nonce INTEGER NOT NULL DEFAULT 0,
			grid_size INTEGER NOT NULL,
			mine_count INTEGER NOT NULL,
			mines TEXT NOT NULL,
			revealed TEXT NOT NULL,
			outcome TEXT NOT NULL,
			multiplier REAL NOT NULL,
			created_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			server_seed_hash TEXT NOT NULL,
			client_seed TEXT NOT NULL,
			nonce_start INTEGER NOT NULL,
			nonce_end INTEGER NOT NULL,
			grid_size INTEGER NOT NULL,
			mine_count INTEGER NOT NULL,
			metric TEXT NOT NULL,
			target_op TEXT NOT NULL,
			target_val REAL NOT NULL,
			hit_count INTEGER NOT NULL DEFAULT 0,
			total_evaluated INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS hits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			nonce INTEGER NOT NULL,
			metric REAL NOT NULL,
			mines TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
	}

	for _, migration := range baseMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("base migration failed: %w", err)
		}
	}

	// Columns added after the first schema; re-adding one is expected to fail.
	alterMigrations := []string{
		`ALTER TABLE games ADD COLUMN engine_version TEXT DEFAULT ''`,
		`ALTER TABLE runs ADD COLUMN target_val2 REAL DEFAULT 0.0`,
		`ALTER TABLE runs ADD COLUMN tolerance REAL DEFAULT 0.0`,
		`ALTER TABLE runs ADD COLUMN hit_limit INTEGER DEFAULT 1000`,
		`ALTER TABLE runs ADD COLUMN timed_out INTEGER DEFAULT 0`,
		`ALTER TABLE runs ADD COLUMN summary_min REAL`,
		`ALTER TABLE runs ADD COLUMN summary_max REAL`,
		`ALTER TABLE runs ADD COLUMN summary_sum REAL`,
		`ALTER TABLE runs ADD COLUMN summary_count INTEGER DEFAULT 0`,
		`ALTER TABLE runs ADD COLUMN engine_version TEXT DEFAULT ''`,
	}

	for _, migration := range alterMigrations {
		if _, err := s.db.Exec(migration); err != nil && !isDuplicateColumnError(err) {
			return fmt.Errorf("alter migration failed: %w", err)
		}
	}

	indexMigrations := []string{
		`CREATE INDEX IF NOT EXISTS idx_games_ended_at ON games(ended_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_games_outcome ON games(outcome, ended_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_games_seed_hash ON games(server_seed_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_client_seed ON runs(client_seed, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_hits_run_nonce ON hits(run_id, nonce)`,
	}

	for _, migration := range indexMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("index migration failed: %w", err)
		}
	}

	return nil
}

func isDuplicateColumnError(err error) bool {
	return strings.Contains(err.Error(), "duplicate column name")
}

// SaveGame archives a finished game.
func (s *SQLiteDB) SaveGame(game *GameRecord) error {
	if game.ID == "" {
		return errors.New("game id is required")
	}
	mines, err := encodeInts(game.Mines)
	if err != nil {
		return err
	}
	revealed, err := encodeInts(game.Revealed)
	if err != nil {
		return err
	}

	var endedAt sql.NullTime
	if !game.EndedAt.IsZero() {
		endedAt = sql.NullTime{Time: game.EndedAt, Valid: true}
	}

	_, err = s.db.Exec(`INSERT INTO games (
		id, server_seed, server_seed_hash, client_seed, nonce, grid_size, mine_count,
		mines, revealed, outcome, multiplier, engine_version, created_at, ended_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		game.ID, game.ServerSeed, game.ServerSeedHash, game.ClientSeed, game.Nonce,
		game.GridSize, game.MineCount, mines, revealed, game.Outcome, game.Multiplier,
		game.EngineVersion, game.CreatedAt, endedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", game.ID, err)
	}
	return nil
}

const gameColumns = `id, server_seed, server_seed_hash, client_seed, nonce, grid_size, mine_count,
	mines, revealed, outcome, multiplier, engine_version, created_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*GameRecord, error) {
	var game GameRecord
	var mines, revealed string
	var engineVersion sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(
		&game.ID, &game.ServerSeed, &game.ServerSeedHash, &game.ClientSeed, &game.Nonce,
		&game.GridSize, &game.MineCount, &mines, &revealed, &game.Outcome, &game.Multiplier,
		&engineVersion, &game.CreatedAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}

	if game.Mines, err = decodeInts(mines); err != nil {
		return nil, err
	}
	if game.Revealed, err = decodeInts(revealed); err != nil {
		return nil, err
	}
	if engineVersion.Valid {
		game.EngineVersion = engineVersion.String
	}
	if endedAt.Valid {
		game.EndedAt = endedAt.Time
	}
	return &game, nil
}

// GetGame retrieves an archived game by id
func (s *SQLiteDB) GetGame(id string) (*GameRecord, error) {
	game, err := scanGame(s.db.QueryRow(`SELECT `+gameColumns+` FROM games WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// ListGames returns archived games, most recently finished first.
func (s *SQLiteDB) ListGames(query GamesQuery) (*GamesList, error) {
	whereClause := ""
	args := []any{}
	if query.Outcome != "" {
		whereClause = "WHERE outcome = ?"
		args = append(args, query.Outcome)
	}

	var totalCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM games "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	if query.PerPage <= 0 {
		query.PerPage = 50
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	offset := (query.Page - 1) * query.PerPage

	rows, err := s.db.Query(`SELECT `+gameColumns+` FROM games `+whereClause+`
		ORDER BY ended_at DESC, id
		LIMIT ? OFFSET ?`, append(args, query.PerPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	games := []GameRecord{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, *game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	return &GamesList{
		Games:      games,
		TotalCount: totalCount,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages(totalCount, query.PerPage),
	}, nil
}

// SaveRun saves a scan run to the database
func (s *SQLiteDB) SaveRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	timedOutInt := 0
	if run.TimedOut {
		timedOutInt = 1
	}

	_, err := s.db.Exec(`INSERT INTO runs (
		id, server_seed_hash, client_seed, nonce_start, nonce_end, grid_size, mine_count,
		metric, target_op, target_val, target_val2, tolerance, hit_limit, timed_out,
		hit_count, total_evaluated, summary_min, summary_max, summary_sum, summary_count,
		engine_version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ServerSeedHash, run.ClientSeed, run.NonceStart, run.NonceEnd,
		run.GridSize, run.MineCount, run.Metric, run.TargetOp, run.TargetVal, run.TargetVal2,
		run.Tolerance, run.HitLimit, timedOutInt, run.HitCount, run.TotalEvaluated,
		run.SummaryMin, run.SummaryMax, run.SummarySum, run.SummaryCount,
		run.EngineVersion,
	)
	return err
}

// SaveHits saves multiple hits to the database in one transaction
func (s *SQLiteDB) SaveHits(runID string, hits []Hit) error {
	if len(hits) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO hits (run_id, nonce, metric, mines) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, hit := range hits {
		mines, err := encodeInts(hit.Mines)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(runID, hit.Nonce, hit.Metric, mines); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const runColumns = `id, server_seed_hash, client_seed, nonce_start, nonce_end, grid_size, mine_count,
	metric, target_op, target_val, target_val2, tolerance, hit_limit, timed_out,
	hit_count, total_evaluated, summary_min, summary_max, summary_sum, summary_count,
	engine_version, created_at`

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var timedOutInt int
	var engineVersion sql.NullString
	var targetVal2, tolerance sql.NullFloat64
	var summaryMin, summaryMax, summarySum sql.NullFloat64

	err := row.Scan(
		&run.ID, &run.ServerSeedHash, &run.ClientSeed, &run.NonceStart, &run.NonceEnd,
		&run.GridSize, &run.MineCount, &run.Metric, &run.TargetOp, &run.TargetVal, &targetVal2,
		&tolerance, &run.HitLimit, &timedOutInt, &run.HitCount, &run.TotalEvaluated,
		&summaryMin, &summaryMax, &summarySum, &run.SummaryCount,
		&engineVersion, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Handle nullable fields
	run.TargetVal2 = targetVal2.Float64
	run.Tolerance = tolerance.Float64
	run.EngineVersion = engineVersion.String
	if summaryMin.Valid {
		run.SummaryMin = &summaryMin.Float64
	}
	if summaryMax.Valid {
		run.SummaryMax = &summaryMax.Float64
	}
	if summarySum.Valid {
		run.SummarySum = &summarySum.Float64
	}
	run.TimedOut = timedOutInt == 1

	return &run, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteDB) GetRun(id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns retrieves runs with pagination, optionally filtered by client seed
func (s *SQLiteDB) ListRuns(query RunsQuery) (*RunsList, error) {
	whereClause := ""
	args := []any{}
	if query.ClientSeed != "" {
		whereClause = "WHERE client_seed = ?"
		args = append(args, query.ClientSeed)
	}

	var totalCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	if query.PerPage <= 0 {
		query.PerPage = 50
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	offset := (query.Page - 1) * query.PerPage

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs `+whereClause+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, append(args, query.PerPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return &RunsList{
		Runs:       runs,
		TotalCount: totalCount,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages(totalCount, query.PerPage),
	}, nil
}

// GetRunHits retrieves hits for a run with server-side pagination and delta nonce calculation
func (s *SQLiteDB) GetRunHits(runID string, page, perPage int) (*HitsPage, error) {
	var totalCount int
	err := s.db.QueryRow("SELECT COUNT(*) FROM hits WHERE run_id = ?", runID).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get hits count: %w", err)
	}

	if perPage <= 0 {
		perPage = 100
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	rows, err := s.db.Query(`SELECT id, run_id, nonce, metric, mines
		FROM hits WHERE run_id = ?
		ORDER BY nonce
		LIMIT ? OFFSET ?`, runID, perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query hits: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var mines sql.NullString
		if err := rows.Scan(&hit.ID, &hit.RunID, &hit.Nonce, &hit.Metric, &mines); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		if hit.Mines, err = decodeInts(mines.String); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hits: %w", err)
	}
	rows.Close()

	hitsWithDelta := make([]HitWithDelta, len(hits))
	for i, hit := range hits {
		hitsWithDelta[i] = HitWithDelta{Hit: hit}

		if i > 0 {
			delta := hit.Nonce - hits[i-1].Nonce
			hitsWithDelta[i].DeltaNonce = &delta
		} else if page > 1 {
			// First hit on a later page: measure from the last hit of the previous page.
			var prevNonce uint64
			err := s.db.QueryRow(`SELECT nonce FROM hits WHERE run_id = ? AND nonce < ? ORDER BY nonce DESC LIMIT 1`,
				runID, hit.Nonce).Scan(&prevNonce)
			if err == nil {
				delta := hit.Nonce - prevNonce
				hitsWithDelta[i].DeltaNonce = &delta
			}
		}
	}

	return &HitsPage{
		Hits:       hitsWithDelta,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages(totalCount, perPage),
	}, nil
}

func encodeInts(v []int) (string, error) {
	if v == nil {
		v = []int{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode positions: %w", err)
	}
	return string(data), nil
}

func decodeInts(s string) ([]int, error) {
	out := []int{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	return out, nil
}
