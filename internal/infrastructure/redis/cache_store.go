package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// CacheStore implements domain.CacheStore on Redis. Each key is a hash
// holding the value and a monotonic version counter; compare-and-set runs as
// a Lua script so the version check, the write, the version bump and the
// optional expiry are a single atomic step.
type CacheStore struct {
	client *redis.Client
}

func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

var casScript = redis.NewScript(`
    local ver = redis.call('HGET', KEYS[1], 'version')
    if ver == false then
        ver = '0'
    end
    if ver ~= ARGV[1] then
        return 0
    end
    redis.call('HSET', KEYS[1], 'value', ARGV[2], 'version', tonumber(ver) + 1)
    if tonumber(ARGV[3]) > 0 then
        redis.call('PEXPIRE', KEYS[1], ARGV[3])
    end
    return 1
`)

var setScript = redis.NewScript(`
    local ver = redis.call('HGET', KEYS[1], 'version')
    if ver == false then
        ver = '0'
    end
    redis.call('HSET', KEYS[1], 'value', ARGV[1], 'version', tonumber(ver) + 1)
    if tonumber(ARGV[2]) > 0 then
        redis.call('PEXPIRE', KEYS[1], ARGV[2])
    end
    return 1
`)

func (s *CacheStore) Get(ctx context.Context, key string) (string, int64, error) {
	result, err := s.client.HMGet(ctx, key, "value", "version").Result()
	if err != nil {
		return "", 0, err
	}

	if result[0] == nil {
		return "", 0, nil
	}

	value := result[0].(string)
	version := int64(0)
	if result[1] != nil {
		version, err = strconv.ParseInt(result[1].(string), 10, 64)
		if err != nil {
			return "", 0, err
		}
	}

	return value, version, nil
}

func (s *CacheStore) CompareAndSet(ctx context.Context, key string, expectedVersion int64, newValue string, ttl time.Duration) (bool, error) {
	result, err := casScript.Run(ctx, s.client, []string{key},
		strconv.FormatInt(expectedVersion, 10),
		newValue,
		strconv.FormatInt(ttl.Milliseconds(), 10)).Result()
	if err != nil {
		return false, err
	}

	return result.(int64) == 1, nil
}

func (s *CacheStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return setScript.Run(ctx, s.client, []string{key},
		value,
		strconv.FormatInt(ttl.Milliseconds(), 10)).Err()
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
