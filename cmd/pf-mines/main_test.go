package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/pf-mines/internal/engine"
	"github.com/MJE43/pf-mines/internal/scan"
)

func TestVerifyCmdBoard(t *testing.T) {
	var out bytes.Buffer
	cmd := VerifyCmd{ServerSeed: "fixed-server", ClientSeed: "fixed-client", GridSize: 3, MineCount: 1}
	require.NoError(t, cmd.Run(&out))

	assert.Contains(t, out.String(), engine.CommitmentHash("fixed-server"))
	assert.Contains(t, out.String(), "mines      [0]")
	assert.Contains(t, out.String(), "* . .\n. . .\n. . .\n")
}

func TestVerifyCmdJSON(t *testing.T) {
	var out bytes.Buffer
	cmd := VerifyCmd{ServerSeed: "test_server_seed", ClientSeed: "test_client_seed", GridSize: 5, MineCount: 3, JSON: true}
	require.NoError(t, cmd.Run(&out))

	var v engine.Verification
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, []int{2, 11, 16}, v.Mines)
}

func TestVerifyCmdCommitment(t *testing.T) {
	cmd := VerifyCmd{ServerSeed: "fixed-server", ClientSeed: "c", GridSize: 5, MineCount: 3}

	cmd.Commitment = engine.CommitmentHash("fixed-server")
	assert.NoError(t, cmd.Run(&bytes.Buffer{}))

	cmd.Commitment = engine.CommitmentHash("other")
	assert.ErrorIs(t, cmd.Run(&bytes.Buffer{}), errCommitmentMismatch)

	cmd.GridSize = 12
	assert.Error(t, cmd.Run(&bytes.Buffer{}))
}

func TestHashCmd(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&HashCmd{Seed: "fixed-server"}).Run(&out))
	assert.Equal(t, engine.CommitmentHash("fixed-server")+"\n", out.String())
}

func TestScanCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := ScanCmd{
		ServerSeed: "scan_server",
		ClientSeed: "scan_client",
		End:        999,
		GridSize:   5,
		MineCount:  3,
		Metric:     "first_mine",
		Op:         "eq",
		Value:      1,
		Limit:      1000,
	}
	require.NoError(t, cmd.Run(&out))
	assert.NotContains(t, out.String(), "scan_server")

	var res struct {
		Hits    []scan.Hit   `json:"hits"`
		Summary scan.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 146, res.Summary.HitsFound)
}

func TestCLIParses(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("pf-mines"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"verify", "--server-seed", "s", "--client-seed", "c", "--grid-size", "4"})
	require.NoError(t, err)
	assert.Equal(t, 4, cli.Verify.GridSize)
	assert.Equal(t, 3, cli.Verify.MineCount)

	_, err = parser.Parse([]string{"scan", "--server-seed", "s", "--client-seed", "c", "--value", "2", "--op", "between", "--value2", "5"})
	require.NoError(t, err)
	assert.Equal(t, "between", cli.Scan.Op)
	assert.Equal(t, 5.0, cli.Scan.Value2)
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pf-mines.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  port = 7000
}
ledger {
  backend = "bolt"
}
`), 0o600))

	cmd := ServeCmd{Config: path, Port: 7100, Ledger: "none", Archive: "games.db"}
	cfg, err := cmd.load()
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Ledger.Backend)
	assert.Equal(t, "games.db", cfg.Archive.Path)
	assert.Equal(t, "127.0.0.1", cfg.Server.Address)

	cmd = ServeCmd{Config: path, LogLevel: "chatty"}
	_, err = cmd.load()
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestServeEnvOverrides(t *testing.T) {
	t.Setenv("PF_MINES_PORT", "7200")
	t.Setenv("PF_MINES_LEDGER", "redis")

	var cli CLI
	parser, err := kong.New(&cli)
	require.NoError(t, err)
	_, err = parser.Parse([]string{"serve", "--config", filepath.Join(t.TempDir(), "missing.hcl")})
	require.NoError(t, err)

	cfg, err := cli.Serve.load()
	require.NoError(t, err)
	assert.Equal(t, 7200, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Ledger.Backend)
}
