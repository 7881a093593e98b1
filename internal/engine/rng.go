package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strconv"
)

// CandidateWidth is the number of digest bytes read per candidate position.
const CandidateWidth = 4

// PositionGenerator streams candidate tile positions for a derivation root.
// Each call to Next hashes "{server}:{client}:{nonce}:{counter}" with SHA-256 and
// reduces the big-endian uint32 prefix of the digest modulo the tile count.
type PositionGenerator struct {
	root    []byte
	tiles   uint32
	counter uint64
	buf     []byte
}

// NewPositionGenerator creates a generator over gridSize*gridSize tiles
func NewPositionGenerator(serverSeed, clientSeed string, nonce uint64, gridSize int) *PositionGenerator {
	root := make([]byte, 0, len(serverSeed)+len(clientSeed)+24)
	root = append(root, serverSeed...)
	root = append(root, ':')
	root = append(root, clientSeed...)
	root = append(root, ':')
	root = strconv.AppendUint(root, nonce, 10)
	root = append(root, ':')

	return &PositionGenerator{
		root:  root,
		tiles: uint32(gridSize * gridSize),
		buf:   make([]byte, 0, len(root)+20),
	}
}

// Next returns the candidate for the current counter and advances the counter.
func (pg *PositionGenerator) Next() int {
	pg.buf = append(pg.buf[:0], pg.root...)
	pg.buf = strconv.AppendUint(pg.buf, pg.counter, 10)
	pg.counter++

	digest := sha256.Sum256(pg.buf)
	return int(binary.BigEndian.Uint32(digest[:CandidateWidth]) % pg.tiles)
}

// Counter returns how many candidates have been drawn so far.
func (pg *PositionGenerator) Counter() uint64 {
	return pg.counter
}

// Derivation is the full output of a mine derivation.
type Derivation struct {
	// Ordered holds mine positions in the order they were accepted.
	Ordered []int `json:"ordered"`
	// Draws is the number of digests consumed, collisions included.
	Draws uint64 `json:"draws"`
}

// DeriveMinesOrdered runs the accept/reject sampling loop and keeps the
// acceptance order. Collisions move on to the next counter.
//
// Callers must guarantee gridSize >= 2 and 1 <= mineCount < gridSize*gridSize;
// otherwise the loop does not terminate.
func DeriveMinesOrdered(serverSeed, clientSeed string, nonce uint64, gridSize, mineCount int) Derivation {
	pg := NewPositionGenerator(serverSeed, clientSeed, nonce, gridSize)

	seen := make(map[int]struct{}, mineCount)
	ordered := make([]int, 0, mineCount)
	for len(ordered) < mineCount {
		pos := pg.Next()
		if _, dup := seen[pos]; dup {
			continue
		}
		seen[pos] = struct{}{}
		ordered = append(ordered, pos)
	}

	return Derivation{Ordered: ordered, Draws: pg.Counter()}
}

// DeriveMines returns the mine set for the given inputs sorted ascending.
func DeriveMines(serverSeed, clientSeed string, nonce uint64, gridSize, mineCount int) []int {
	d := DeriveMinesOrdered(serverSeed, clientSeed, nonce, gridSize, mineCount)
	mines := make([]int, len(d.Ordered))
	copy(mines, d.Ordered)
	sort.Ints(mines)
	return mines
}
