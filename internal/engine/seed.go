package engine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// ServerSeedBytes is the entropy of a generated server seed.
	ServerSeedBytes = 32
	// ClientSeedBytes is the entropy of a generated client seed.
	ClientSeedBytes = 16
)

// NewServerSeed reads ServerSeedBytes from r and hex-encodes them.
// A nil reader means crypto/rand.
func NewServerSeed(r io.Reader) (string, error) {
	return randomHex(r, ServerSeedBytes)
}

// NewClientSeed reads ClientSeedBytes from r and hex-encodes them.
func NewClientSeed(r io.Reader) (string, error) {
	return randomHex(r, ClientSeedBytes)
}

func randomHex(r io.Reader, n int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read %d random bytes: %w", n, err)
	}
	return hex.EncodeToString(buf), nil
}
