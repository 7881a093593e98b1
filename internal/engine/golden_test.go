package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// MinesVector is a derivation recorded by an independent reference verifier.
type MinesVector struct {
	Description string `json:"description"`
	ServerSeed  string `json:"server_seed"`
	ClientSeed  string `json:"client_seed"`
	Nonce       uint64 `json:"nonce"`
	GridSize    int    `json:"grid_size"`
	MineCount   int    `json:"mine_count"`
	Ordered     []int  `json:"ordered"`
	Mines       []int  `json:"mines"`
	Draws       uint64 `json:"draws"`
	SeedHash    string `json:"seed_hash"`
}

func TestMinesGoldenVectors(t *testing.T) {
	vectors, err := loadMinesVectors()
	if err != nil {
		t.Fatalf("Failed to load golden vectors: %v", err)
	}
	if len(vectors) == 0 {
		t.Fatal("No golden vectors found")
	}

	for _, v := range vectors {
		t.Run(v.Description, func(t *testing.T) {
			d := DeriveMinesOrdered(v.ServerSeed, v.ClientSeed, v.Nonce, v.GridSize, v.MineCount)
			if !equalInts(d.Ordered, v.Ordered) {
				t.Errorf("acceptance order mismatch: got %v, want %v", d.Ordered, v.Ordered)
			}
			if d.Draws != v.Draws {
				t.Errorf("draws mismatch: got %d, want %d", d.Draws, v.Draws)
			}

			res := Verify(v.ServerSeed, v.ClientSeed, v.Nonce, v.GridSize, v.MineCount)
			if !equalInts(res.Mines, v.Mines) {
				t.Errorf("mine set mismatch: got %v, want %v", res.Mines, v.Mines)
			}
			if res.CommitmentHash != v.SeedHash {
				t.Errorf("seed hash mismatch: got %s, want %s", res.CommitmentHash, v.SeedHash)
			}
		})
	}
}

func loadMinesVectors() ([]MinesVector, error) {
	path := filepath.Join("..", "..", "testdata", "mines_vectors.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var vectors []MinesVector
	err = json.Unmarshal(data, &vectors)
	return vectors, err
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
