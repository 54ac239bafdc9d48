/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/krutt/endur/config"
	redis_db "github.com/krutt/endur/internal/redis-db"
)

// Cache provides the basic operations the price oracle needs to keep the
// most recent quote around between polls.
type Cache interface {
	// Set stores a value in the cache with a specified time-to-live (TTL).
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get retrieves a value from the cache into data. A cache miss is not an
	// error; data is simply left untouched.
	Get(ctx context.Context, key string, data interface{}) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error
}

// RedisCache implements Cache on Redis with a small local TinyLFU layer in
// front of it.
type RedisCache struct {
	cache *cache.Cache
}

// cacheSize defines the size of the local cache (in number of entries) used alongside Redis.
const cacheSize = 10000

// NewCache creates a RedisCache from the loaded configuration. When no Redis
// DNS is configured, the cache degrades to local-only; the oracle still works
// but cached prices do not survive a restart.
func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Dns == "" {
		c := cache.New(&cache.Options{
			LocalCache: cache.NewTinyLFU(cacheSize, time.Minute),
		})
		return &RedisCache{cache: c}, nil
	}

	return newRedisCache(cfg.Redis.Dns)
}

// newRedisCache sets up a Redis-backed cache with local caching (TinyLFU).
func newRedisCache(address string) (*RedisCache, error) {
	client, err := redis_db.NewRedisClient(address)
	if err != nil {
		return nil, err
	}

	c := cache.New(&cache.Options{
		Redis:      client.Client(),
		LocalCache: cache.NewTinyLFU(cacheSize, time.Minute),
	})

	return &RedisCache{cache: c}, nil
}

// Set adds a new entry to the cache with a specified key and TTL.
func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

// Get retrieves an entry from the cache based on the provided key. A cache
// miss returns nil.
func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) error {
	err := r.cache.Get(ctx, key, &data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}

	return err
}

// Delete removes an entry from the cache based on the provided key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}
