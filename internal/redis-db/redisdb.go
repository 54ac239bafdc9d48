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

package redis_db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps a connected Redis client.
type Redis struct {
	address string
	client  redis.UniversalClient
}

// ParseRedisURL parses a Redis URL into Redis options. Plain docker-style
// addresses (e.g. redis:6379) are accepted alongside redis:// URLs.
func ParseRedisURL(rawURL string) (*redis.Options, error) {
	if rawURL == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	// Don't modify docker-style addresses (e.g. redis:6379)
	if strings.Count(rawURL, ":") == 1 && !strings.Contains(rawURL, "@") && !strings.Contains(rawURL, "//") {
		return &redis.Options{
			Addr: rawURL,
		}, nil
	}

	return redis.ParseURL(rawURL)
}

// NewRedisClient creates a Redis client for the given address and verifies
// the connection with a short ping.
//
// Parameters:
// - address string: A Redis address, either docker-style or a redis:// URL.
//
// Returns:
// - *Redis: A new Redis client wrapper.
// - error: An error if the address is invalid or the connection fails.
func NewRedisClient(address string) (*Redis, error) {
	opts, err := ParseRedisURL(address)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return &Redis{address: address, client: client}, nil
}

// Client returns the Redis universal client.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}
