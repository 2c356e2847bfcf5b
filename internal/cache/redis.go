package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/emrgen/notebook/internal/compress"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func revisionKey(recordID string, number int64) string {
	return "notebook:revision:" + recordID + ":" + strconv.FormatInt(number, 10)
}

var _ RevisionCache = (*RedisRevisionCache)(nil)

// RedisRevisionCache keeps compressed revision content in redis.
type RedisRevisionCache struct {
	client  *redis.Client
	encoder compress.Compress
	ttl     time.Duration
}

func NewRedisRevisionCache(client *redis.Client, ttl time.Duration) *RedisRevisionCache {
	return &RedisRevisionCache{client: client, encoder: compress.NewGZip(), ttl: ttl}
}

func NewRedisRevisionCacheFromAddr(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisRevisionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		Protocol: 2, // Connection protocol
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisRevisionCache(client, ttl), nil
}

func (r *RedisRevisionCache) GetRevision(ctx context.Context, recordID string, number int64) (map[string]string, error) {
	res := r.client.Get(ctx, revisionKey(recordID, number))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, err
	}

	data, err := r.encoder.Decode(buf)
	if err != nil {
		return nil, err
	}

	content := make(map[string]string)
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, err
	}

	return content, nil
}

func (r *RedisRevisionCache) SetRevision(ctx context.Context, recordID string, number int64, content map[string]string) error {
	marshal, err := json.Marshal(content)
	if err != nil {
		return err
	}

	data, err := r.encoder.Encode(marshal)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, revisionKey(recordID, number), data, r.ttl).Err(); err != nil {
		return err
	}

	logrus.Debugf("cached revision %d of record %s", number, recordID)

	return nil
}

// Close closes the redis connection
func (r *RedisRevisionCache) Close() error {
	return r.client.Close()
}
