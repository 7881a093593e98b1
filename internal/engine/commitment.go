package engine

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// CommitmentHash returns the lowercase hex SHA-256 of the server seed.
func CommitmentHash(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// MatchesCommitment reports whether serverSeed hashes to commitment.
// An optional "0x" prefix and upper-case hex are accepted.
func MatchesCommitment(serverSeed, commitment string) bool {
	commitment = strings.ToLower(strings.TrimPrefix(commitment, "0x"))
	expected := CommitmentHash(serverSeed)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(commitment)) == 1
}

// Verify re-runs the derivation and the commitment hash for a disclosed seed.
// The same board preconditions as DeriveMines apply.
func Verify(serverSeed, clientSeed string, nonce uint64, gridSize, mineCount int) Verification {
	return Verification{
		Mines:          DeriveMines(serverSeed, clientSeed, nonce, gridSize, mineCount),
		CommitmentHash: CommitmentHash(serverSeed),
	}
}
