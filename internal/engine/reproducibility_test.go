package engine

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
)

// TestCrossPlatformReproducibility checks that derivations are identical across calls,
// scheduler settings and concurrent use.
func TestCrossPlatformReproducibility(t *testing.T) {
	serverSeed := "test_server_seed_for_reproducibility"
	clientSeed := "test_client_seed_for_reproducibility"
	nonce := uint64(12345)

	reference := DeriveMines(serverSeed, clientSeed, nonce, 8, 20)

	t.Run("Multiple calls identical", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			mines := DeriveMines(serverSeed, clientSeed, nonce, 8, 20)
			if !equalInts(mines, reference) {
				t.Fatalf("iteration %d: got %v, want %v", i, mines, reference)
			}
		}
	})

	t.Run("Different GOMAXPROCS settings", func(t *testing.T) {
		original := runtime.GOMAXPROCS(0)
		defer runtime.GOMAXPROCS(original)

		for _, procs := range []int{1, 2, 4, runtime.NumCPU()} {
			if procs > runtime.NumCPU() {
				continue
			}
			t.Run(fmt.Sprintf("GOMAXPROCS=%d", procs), func(t *testing.T) {
				runtime.GOMAXPROCS(procs)
				mines := DeriveMines(serverSeed, clientSeed, nonce, 8, 20)
				if !equalInts(mines, reference) {
					t.Errorf("got %v, want %v", mines, reference)
				}
			})
		}
	})

	t.Run("Concurrent derivations", func(t *testing.T) {
		const goroutines = 32
		results := make([][]int, goroutines)

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = DeriveMines(serverSeed, clientSeed, nonce, 8, 20)
			}(i)
		}
		wg.Wait()

		for i, mines := range results {
			if !equalInts(mines, reference) {
				t.Errorf("goroutine %d: got %v, want %v", i, mines, reference)
			}
		}
	})
}
