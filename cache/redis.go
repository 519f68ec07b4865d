package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps partitions in Redis so several processes share one cache.
// Each partition is a hash of key -> JSON entry; the set of partition names is
// tracked separately so Names and Has do not need SCAN.
type RedisStorage struct {
	rdb       *redis.Client
	namespace string
}

func NewRedisStorage(rdb *redis.Client, namespace string) *RedisStorage {
	return &RedisStorage{rdb: rdb, namespace: namespace}
}

// OpenRedis builds a client from an address, password and db index.
func OpenRedis(addr, pass string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

func (s *RedisStorage) namesKey() string { return s.namespace + ":partitions" }

func (s *RedisStorage) hashKey(name string) string { return s.namespace + ":p:" + name }

func (s *RedisStorage) Open(ctx context.Context, name string) (Partition, error) {
	if err := s.rdb.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
		return nil, fmt.Errorf("open partition %s: %w", name, err)
	}
	return &redisPartition{rdb: s.rdb, name: name, key: s.hashKey(name)}, nil
}

func (s *RedisStorage) Has(ctx context.Context, name string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, s.namesKey(), name).Result()
	if err != nil {
		return false, fmt.Errorf("check partition %s: %w", name, err)
	}
	return ok, nil
}

func (s *RedisStorage) Delete(ctx context.Context, name string) (bool, error) {
	pipe := s.rdb.TxPipeline()
	removed := pipe.SRem(ctx, s.namesKey(), name)
	pipe.Del(ctx, s.hashKey(name))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete partition %s: %w", name, err)
	}
	return removed.Val() > 0, nil
}

func (s *RedisStorage) Names(ctx context.Context) ([]string, error) {
	names, err := s.rdb.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

type redisPartition struct {
	rdb  *redis.Client
	name string
	key  string
}

func (p *redisPartition) Name() string { return p.name }

func (p *redisPartition) Match(ctx context.Context, key string) (*Entry, error) {
	raw, err := p.rdb.HGet(ctx, p.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("match %s in %s: %w", key, p.name, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode %s in %s: %w", key, p.name, err)
	}
	return &e, nil
}

func (p *redisPartition) Put(ctx context.Context, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Key, err)
	}
	if err := p.rdb.HSet(ctx, p.key, e.Key, raw).Err(); err != nil {
		return fmt.Errorf("put %s in %s: %w", e.Key, p.name, err)
	}
	return nil
}

func (p *redisPartition) Delete(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.HDel(ctx, p.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("delete %s in %s: %w", key, p.name, err)
	}
	return n > 0, nil
}

func (p *redisPartition) Keys(ctx context.Context) ([]string, error) {
	keys, err := p.rdb.HKeys(ctx, p.key).Result()
	if err != nil {
		return nil, fmt.Errorf("keys of %s: %w", p.name, err)
	}
	sort.Strings(keys)
	return keys, nil
}
