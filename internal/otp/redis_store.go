package otp

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript bumps the attempt counter only while the entry still exists,
// so a late guess cannot resurrect an expired key without a TTL.
var incrScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1
	end
	return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// consumeScript deletes the entry only when it still carries the expected
// hash and returns the number of keys removed.
var consumeScript = redis.NewScript(`
	if redis.call('HGET', KEYS[1], 'hash') ~= ARGV[1] then
		return 0
	end
	return redis.call('DEL', KEYS[1])
`)

// RedisStore keeps codes in Redis hashes under "<prefix>:<email>".
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "dodo:otp"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(email string) string { return s.prefix + ":" + email }

func (s *RedisStore) Save(ctx context.Context, email string, e Entry, ttl time.Duration) error {
	key := s.key(email)
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"hash", e.Hash,
		"attempts", e.Attempts,
		"issued_at_ms", e.IssuedAt.UnixMilli(),
	)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, email string) (Entry, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return Entry{}, err
	}
	if len(m) == 0 || m["hash"] == "" {
		return Entry{}, ErrNoCode
	}
	attempts, _ := strconv.Atoi(m["attempts"])
	ms, _ := strconv.ParseInt(m["issued_at_ms"], 10, 64)
	return Entry{
		Hash:     m["hash"],
		Attempts: attempts,
		IssuedAt: time.UnixMilli(ms).UTC(),
	}, nil
}

func (s *RedisStore) IncrAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrScript.Run(ctx, s.rdb, []string{s.key(email)}).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNoCode
		}
		return 0, err
	}
	if n < 0 {
		return 0, ErrNoCode
	}
	return n, nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, s.key(email)).Err()
}

func (s *RedisStore) Consume(ctx context.Context, email, hash string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{s.key(email)}, hash).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
