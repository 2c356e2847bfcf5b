package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	recordLockPrefix  = "notebook:lock:record:"
	sessionLockPrefix = "notebook:lock:session:"
)

func recordLockKey(recordID string) string {
	return recordLockPrefix + recordID
}

func sessionLockKey(sessionID string) string {
	return sessionLockPrefix + sessionID
}

// KEYS[1] record lock, KEYS[2] session index
// ARGV[1] holder, ARGV[2] ttl in ms (0 keeps the lock until released), ARGV[3] record id
var acquireScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local ttl = tonumber(ARGV[2])
if not current then
	if ttl > 0 then
		redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
	else
		redis.call('SET', KEYS[1], ARGV[1])
	end
	redis.call('HSET', KEYS[2], ARGV[3], ARGV[1])
	return {1, ARGV[1]}
end
if current == ARGV[1] then
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[1], ttl)
	end
	return {1, current}
end
return {0, current}
`)

// KEYS[1] record lock, KEYS[2] session index
// ARGV[1] holder, ARGV[2] record id
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('DEL', KEYS[1])
	redis.call('HDEL', KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// KEYS[1] record lock
var forceReleaseScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	redis.call('DEL', KEYS[1])
	return current
end
return false
`)

var _ Registry = (*RedisRegistry)(nil)

// RedisRegistry keeps edit locks in redis so that every api process sees the same
// holder. A positive ttl expires abandoned locks; the session index is advisory.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

// NewRedisRegistryFromAddr connects to redis and verifies the connection.
func NewRedisRegistryFromAddr(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisRegistry(client, ttl), nil
}

func (r *RedisRegistry) Acquire(ctx context.Context, recordID string, h Holder) (Holder, bool, error) {
	if !h.Valid() {
		return Holder{}, false, ErrInvalidHolder
	}

	value, err := encodeHolder(h)
	if err != nil {
		return Holder{}, false, err
	}

	res, err := acquireScript.Run(ctx, r.client,
		[]string{recordLockKey(recordID), sessionLockKey(h.SessionID)},
		value, r.ttl.Milliseconds(), recordID,
	).Slice()
	if err != nil {
		return Holder{}, false, fmt.Errorf("acquire lock %s: %w", recordID, err)
	}
	if len(res) != 2 {
		return Holder{}, false, fmt.Errorf("acquire lock %s: unexpected reply %v", recordID, res)
	}

	granted, _ := res[0].(int64)
	raw, _ := res[1].(string)
	current, err := decodeHolder(raw)
	if err != nil {
		return Holder{}, false, err
	}

	return current, granted == 1, nil
}

func (r *RedisRegistry) Release(ctx context.Context, recordID string, h Holder) (bool, error) {
	value, err := encodeHolder(h)
	if err != nil {
		return false, err
	}

	released, err := releaseScript.Run(ctx, r.client,
		[]string{recordLockKey(recordID), sessionLockKey(h.SessionID)},
		value, recordID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", recordID, err)
	}

	return released == 1, nil
}

func (r *RedisRegistry) ForceRelease(ctx context.Context, recordID string) error {
	raw, err := forceReleaseScript.Run(ctx, r.client, []string{recordLockKey(recordID)}).Text()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("force release lock %s: %w", recordID, err)
	}

	h, err := decodeHolder(raw)
	if err != nil {
		logrus.Warnf("force released lock %s with unreadable holder: %v", recordID, err)
		return nil
	}

	return r.client.HDel(ctx, sessionLockKey(h.SessionID), recordID).Err()
}

func (r *RedisRegistry) ReleaseSession(ctx context.Context, sessionID string) ([]string, error) {
	key := sessionLockKey(sessionID)
	held, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("list session locks %s: %w", sessionID, err)
	}

	var released []string
	for recordID, value := range held {
		ok, err := releaseScript.Run(ctx, r.client, []string{recordLockKey(recordID), key}, value, recordID).Int()
		if err != nil {
			return released, fmt.Errorf("release lock %s: %w", recordID, err)
		}
		if ok == 1 {
			released = append(released, recordID)
		}
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return released, err
	}

	return released, nil
}

func (r *RedisRegistry) Holder(ctx context.Context, recordID string) (Holder, bool, error) {
	raw, err := r.client.Get(ctx, recordLockKey(recordID)).Result()
	if errors.Is(err, redis.Nil) {
		return Holder{}, false, nil
	}
	if err != nil {
		return Holder{}, false, err
	}

	h, err := decodeHolder(raw)
	if err != nil {
		return Holder{}, false, err
	}

	return h, true, nil
}

// Close closes the redis connection
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

func encodeHolder(h Holder) (string, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeHolder(raw string) (Holder, error) {
	var h Holder
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return Holder{}, fmt.Errorf("decode lock holder: %w", err)
	}
	return h, nil
}
