package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MJE43/pf-mines/internal/api"
	"github.com/MJE43/pf-mines/internal/engine"
	"github.com/MJE43/pf-mines/internal/games"
	"github.com/MJE43/pf-mines/internal/scan"
)

// VerifyCmd recomputes a finished game. With --commitment it also checks that
// the seed hashes to the hash published before play.
type VerifyCmd struct {
	ServerSeed string `required:"" help:"Disclosed server seed"`
	ClientSeed string `required:"" help:"Client seed"`
	Nonce      uint64 `default:"0" help:"Nonce"`
	GridSize   int    `default:"5" help:"Grid size (2-10)"`
	MineCount  int    `default:"3" help:"Number of mines"`
	Commitment string `help:"Seed hash published before the game"`
	JSON       bool   `name:"json" help:"Print JSON instead of a board"`
}

var errCommitmentMismatch = errors.New("server seed does not match commitment")

func (c *VerifyCmd) Run(out io.Writer) error {
	if err := games.ValidateBoard(c.GridSize, c.MineCount); err != nil {
		return err
	}
	v := engine.Verify(c.ServerSeed, c.ClientSeed, c.Nonce, c.GridSize, c.MineCount)

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "seed_hash  %s\n", v.CommitmentHash)
		fmt.Fprintf(out, "mines      %v\n\n", v.Mines)
		fmt.Fprint(out, renderBoard(c.GridSize, v.Mines))
	}

	if c.Commitment != "" && !engine.MatchesCommitment(c.ServerSeed, c.Commitment) {
		return errCommitmentMismatch
	}
	return nil
}

// renderBoard draws mines as '*' and safe tiles as '.', row by row.
func renderBoard(gridSize int, mines []int) string {
	isMine := make(map[int]bool, len(mines))
	for _, m := range mines {
		isMine[m] = true
	}
	var b strings.Builder
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			if col > 0 {
				b.WriteByte(' ')
			}
			if isMine[row*gridSize+col] {
				b.WriteByte('*')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// HashCmd prints hex(SHA-256(seed)).
type HashCmd struct {
	Seed string `arg:"" help:"Server seed"`
}

func (c *HashCmd) Run(out io.Writer) error {
	_, err := fmt.Fprintln(out, engine.CommitmentHash(c.Seed))
	return err
}

// ScanCmd runs the nonce scanner locally and prints the result as JSON.
type ScanCmd struct {
	ServerSeed string  `required:"" help:"Server seed"`
	ClientSeed string  `required:"" help:"Client seed"`
	Start      uint64  `default:"0" help:"First nonce"`
	End        uint64  `default:"999" help:"Last nonce (inclusive)"`
	GridSize   int     `default:"5" help:"Grid size (2-10)"`
	MineCount  int     `default:"3" help:"Number of mines"`
	Metric     string  `default:"first_mine" enum:"first_mine,safe_run,run_multiplier,picks_hit" help:"Metric to compute per nonce"`
	Picks      []int   `help:"Tiles for the picks_hit metric"`
	Op         string  `default:"ge" enum:"eq,gt,ge,lt,le,between,outside" help:"Target comparison"`
	Value      float64 `required:"" help:"Target value"`
	Value2     float64 `name:"value2" help:"Upper bound for between/outside"`
	Tolerance  float64 `help:"Comparison tolerance"`
	Limit      int     `default:"1000" help:"Stop after this many hits"`
	TimeoutMs  int     `default:"60000" help:"Give up after this many milliseconds"`
	Workers    int     `help:"Worker goroutines (default NumCPU)"`
}

func (c *ScanCmd) request() scan.ScanRequest {
	return scan.ScanRequest{
		Seeds:      engine.Seeds{Server: c.ServerSeed, Client: c.ClientSeed},
		NonceStart: c.Start,
		NonceEnd:   c.End,
		GridSize:   c.GridSize,
		MineCount:  c.MineCount,
		Metric:     scan.Metric(c.Metric),
		Picks:      c.Picks,
		TargetOp:   scan.TargetOp(c.Op),
		TargetVal:  c.Value,
		TargetVal2: c.Value2,
		Tolerance:  c.Tolerance,
		Limit:      c.Limit,
		TimeoutMs:  c.TimeoutMs,
	}
}

func (c *ScanCmd) Run(out io.Writer) error {
	scanner := scan.NewScanner(api.EngineVersion)
	if c.Workers > 0 {
		scanner = scanner.WithWorkers(c.Workers)
	}

	result, err := scanner.Scan(context.Background(), c.request())
	if err != nil {
		return err
	}
	// The echoed request carries the raw seed; print only hits and summary.
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Hits    []scan.Hit   `json:"hits"`
		Summary scan.Summary `json:"summary"`
	}{result.Hits, result.Summary})
}
