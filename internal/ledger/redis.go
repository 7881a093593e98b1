package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "pfmines:ledger:"

	fieldSeedHash    = "seed_hash"
	fieldCommittedAt = "committed_at"
	fieldRevealed    = "revealed"
	fieldServerSeed  = "server_seed"
	fieldRevealedAt  = "revealed_at"
)

// RedisOptions configures OpenRedis. Prefix namespaces every key and defaults
// to "pfmines:ledger:".
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisLedger stores one hash per game. HSETNX on the seed hash field makes
// commits first-writer-wins across processes sharing the server.
type RedisLedger struct {
	client *redis.Client
	opts   RedisOptions
	clock  quartz.Clock
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, opts RedisOptions, clock quartz.Clock) (*RedisLedger, error) {
	if opts.Prefix == "" {
		opts.Prefix = defaultRedisPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLedger{client: client, opts: opts, clock: realClock(clock)}, nil
}

func (l *RedisLedger) gameKey(gameID string) string { return l.opts.Prefix + "game:" + gameID }

func (l *RedisLedger) seqKey() string { return l.opts.Prefix + "seq" }

func (l *RedisLedger) Commit(ctx context.Context, gameID, commitment string) (Receipt, error) {
	hash, err := normalizeCommitment(commitment)
	if err != nil {
		return Receipt{}, err
	}

	key := l.gameKey(gameID)
	ok, err := l.client.HSetNX(ctx, key, fieldSeedHash, hash).Result()
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to commit game: %w", err)
	}
	if !ok {
		return Receipt{}, ErrAlreadyCommitted
	}

	now := l.clock.Now("ledger", "commit")
	if err := l.client.HSet(ctx, key, fieldCommittedAt, now.Format(time.RFC3339Nano), fieldRevealed, "0").Err(); err != nil {
		return Receipt{}, fmt.Errorf("failed to record commit time: %w", err)
	}
	return l.receipt(ctx, gameID, now)
}

func (l *RedisLedger) Reveal(ctx context.Context, gameID, serverSeed string) (Receipt, error) {
	key := l.gameKey(gameID)
	now := l.clock.Now("ledger", "reveal")

	// WATCH makes the check-then-set atomic against a concurrent reveal.
	err := l.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return ErrNotCommitted
		}
		if err := checkReveal(recordFromHash(gameID, fields), serverSeed); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldRevealed, "1",
				fieldServerSeed, serverSeed,
				fieldRevealedAt, now.Format(time.RFC3339Nano))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return Receipt{}, ErrAlreadyRevealed
	}
	if err != nil {
		return Receipt{}, err
	}
	return l.receipt(ctx, gameID, now)
}

func (l *RedisLedger) Get(ctx context.Context, gameID string) (Record, error) {
	fields, err := l.client.HGetAll(ctx, l.gameKey(gameID)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("failed to read ledger record: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return recordFromHash(gameID, fields), nil
}

func (l *RedisLedger) Info() Info {
	return Info{Backend: BackendRedis, Enabled: true, Target: l.opts.Addr}
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func (l *RedisLedger) receipt(ctx context.Context, gameID string, at time.Time) (Receipt, error) {
	seq, err := l.client.Incr(ctx, l.seqKey()).Result()
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to advance ledger sequence: %w", err)
	}
	return Receipt{GameID: gameID, Sequence: uint64(seq), At: at}, nil
}

func recordFromHash(gameID string, fields map[string]string) Record {
	rec := Record{
		GameID:     gameID,
		SeedHash:   fields[fieldSeedHash],
		Revealed:   fields[fieldRevealed] == "1",
		ServerSeed: fields[fieldServerSeed],
	}
	rec.CommittedAt, _ = time.Parse(time.RFC3339Nano, fields[fieldCommittedAt])
	rec.RevealedAt, _ = time.Parse(time.RFC3339Nano, fields[fieldRevealedAt])
	return rec
}
