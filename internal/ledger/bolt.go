package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	bolt "go.etcd.io/bbolt"
)

var (
	gamesBucket = []byte("games")
	logBucket   = []byte("log")
)

// BoltLedger keeps records in a local bbolt file. The games bucket holds one
// JSON record per game id; the log bucket is an append-only list of accepted
// writes keyed by sequence.
type BoltLedger struct {
	db    *bolt.DB
	path  string
	clock quartz.Clock
}

type logEntry struct {
	Kind   string    `json:"kind"`
	GameID string    `json:"game_id"`
	At     time.Time `json:"at"`
}

// OpenBolt opens (creating if needed) the ledger file at path.
func OpenBolt(path string, clock quartz.Clock) (*BoltLedger, error) {
	if path == "" {
		return nil, errors.New("bolt ledger path is empty")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt ledger: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{gamesBucket, logBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("cannot create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltLedger{db: db, path: path, clock: realClock(clock)}, nil
}

func (l *BoltLedger) Commit(_ context.Context, gameID, commitment string) (Receipt, error) {
	hash, err := normalizeCommitment(commitment)
	if err != nil {
		return Receipt{}, err
	}

	now := l.clock.Now("ledger", "commit")
	var receipt Receipt
	err = l.db.Update(func(tx *bolt.Tx) error {
		games := tx.Bucket(gamesBucket)
		if games.Get([]byte(gameID)) != nil {
			return ErrAlreadyCommitted
		}
		rec := Record{GameID: gameID, SeedHash: hash, CommittedAt: now}
		if err := putRecord(games, rec); err != nil {
			return err
		}
		seq, err := appendLog(tx, "commit", gameID, now)
		if err != nil {
			return err
		}
		receipt = Receipt{GameID: gameID, Sequence: seq, At: now}
		return nil
	})
	return receipt, err
}

func (l *BoltLedger) Reveal(_ context.Context, gameID, serverSeed string) (Receipt, error) {
	now := l.clock.Now("ledger", "reveal")
	var receipt Receipt
	err := l.db.Update(func(tx *bolt.Tx) error {
		games := tx.Bucket(gamesBucket)
		raw := games.Get([]byte(gameID))
		if raw == nil {
			return ErrNotCommitted
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("corrupt ledger record %s: %w", gameID, err)
		}
		if err := checkReveal(rec, serverSeed); err != nil {
			return err
		}

		rec.Revealed = true
		rec.ServerSeed = serverSeed
		rec.RevealedAt = now
		if err := putRecord(games, rec); err != nil {
			return err
		}
		seq, err := appendLog(tx, "reveal", gameID, now)
		if err != nil {
			return err
		}
		receipt = Receipt{GameID: gameID, Sequence: seq, At: now}
		return nil
	})
	return receipt, err
}

func (l *BoltLedger) Get(_ context.Context, gameID string) (Record, error) {
	var rec Record
	err := l.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(gamesBucket).Get([]byte(gameID))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	return rec, err
}

// Sequence is the number of writes accepted so far.
func (l *BoltLedger) Sequence() uint64 {
	var seq uint64
	l.db.View(func(tx *bolt.Tx) error {
		seq = tx.Bucket(logBucket).Sequence()
		return nil
	})
	return seq
}

func (l *BoltLedger) Info() Info {
	return Info{Backend: BackendBolt, Enabled: true, Target: l.path}
}

func (l *BoltLedger) Close() error {
	return l.db.Close()
}

func putRecord(b *bolt.Bucket, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("unable to marshal ledger record: %w", err)
	}
	return b.Put([]byte(rec.GameID), data)
}

func appendLog(tx *bolt.Tx, kind, gameID string, at time.Time) (uint64, error) {
	b := tx.Bucket(logBucket)
	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(logEntry{Kind: kind, GameID: gameID, At: at})
	if err != nil {
		return 0, err
	}
	return seq, b.Put(itob(seq), data)
}

// itob returns an 8-byte big endian representation of v.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
