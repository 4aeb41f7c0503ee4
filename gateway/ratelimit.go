// Copyright 2025 ChemGPT
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter enforces a per-caller requests-per-minute limit. With a
// Redis client it uses a sliding window shared across gateway
// instances; without one (or when Redis errors) it falls back to an
// in-memory fixed window, failing open rather than blocking traffic.
type RateLimiter struct {
	limitPerMinute int
	redis          *redis.Client

	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter creates a limiter. redisURL may be empty for
// in-memory-only limiting.
func NewRateLimiter(limitPerMinute int, redisURL string) (*RateLimiter, error) {
	rl := &RateLimiter{
		limitPerMinute: limitPerMinute,
		windows:        make(map[string]*rateWindow),
	}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		rl.redis = client
		log.Printf("[RateLimit] Redis connected, distributed limiting enabled")
	}

	return rl, nil
}

// Allow reports whether callerID may issue another request this minute.
func (rl *RateLimiter) Allow(ctx context.Context, callerID string) error {
	if rl.limitPerMinute <= 0 {
		return nil
	}
	if rl.redis != nil {
		return rl.allowRedis(ctx, callerID)
	}
	return rl.allowLocal(callerID)
}

// allowRedis uses a Redis sorted set per caller as a sliding window.
func (rl *RateLimiter) allowRedis(ctx context.Context, callerID string) error {
	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s", callerID)

	pipe := rl.redis.Pipeline()

	// Drop timestamps older than one minute, count the rest, record
	// this request, and keep the key from leaking.
	minScore := now.Add(-time.Minute).Unix()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", minScore))
	pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.Unix()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, 2*time.Minute)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		// On Redis error, fail open and log.
		log.Printf("[RateLimit] Redis check failed for %s: %v (failing open)", callerID, err)
		return nil
	}

	count := cmds[1].(*redis.IntCmd).Val()
	if count >= int64(rl.limitPerMinute) {
		return fmt.Errorf("rate limit exceeded: %d requests/minute (limit: %d)", count+1, rl.limitPerMinute)
	}
	return nil
}

// allowLocal is the in-memory fixed-window fallback.
func (rl *RateLimiter) allowLocal(callerID string) error {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[callerID]
	if !ok || now.After(w.resetTime) {
		rl.windows[callerID] = &rateWindow{count: 1, resetTime: now.Add(time.Minute)}
		return nil
	}

	w.count++
	if w.count > rl.limitPerMinute {
		return fmt.Errorf("rate limit exceeded: %d requests/minute (limit: %d)", w.count, rl.limitPerMinute)
	}
	return nil
}

// Close releases the Redis connection if one was opened.
func (rl *RateLimiter) Close() error {
	if rl.redis != nil {
		return rl.redis.Close()
	}
	return nil
}
