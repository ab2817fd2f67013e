package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobsift/jobsift/internal/domain/model"
)

// jobListGenKey is a monotonically increasing generation counter. Bumping
// it on any write invalidates every cached page at once, without SCAN.
const jobListGenKey = "jobsift:jobs:gen"

// JobListCache caches serialized pages of the jobs read API in Redis. A
// miss or any Redis failure degrades to a database read.
type JobListCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewJobListCache creates a cache over the given client. A nil client
// disables caching: Get always misses, Set and Invalidate are no-ops.
func NewJobListCache(client redis.UniversalClient, ttl time.Duration) *JobListCache {
	return &JobListCache{client: client, ttl: ttl}
}

// NewRedisClient builds a client for the single-node deployment.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Enabled reports whether a backing client is configured.
func (c *JobListCache) Enabled() bool { return c != nil && c.client != nil }

// Close releases the backing client, if any.
func (c *JobListCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// Get returns the cached page for (limit, offset), or (nil, false) on miss.
func (c *JobListCache) Get(ctx context.Context, limit, offset int) ([]model.Job, bool) {
	if !c.Enabled() {
		return nil, false
	}

	key, err := c.pageKey(ctx, limit, offset)
	if err != nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var jobs []model.Job
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, false
	}
	return jobs, true
}

// Set stores one page under the current generation.
func (c *JobListCache) Set(ctx context.Context, limit, offset int, jobs []model.Job) {
	if !c.Enabled() {
		return
	}

	key, err := c.pageKey(ctx, limit, offset)
	if err != nil {
		return
	}
	raw, err := json.Marshal(jobs)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate bumps the generation counter, orphaning all cached pages.
// Orphaned keys expire on their own TTL.
func (c *JobListCache) Invalidate(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	_ = c.client.Incr(ctx, jobListGenKey).Err()
}

// Health pings the backing Redis.
func (c *JobListCache) Health(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *JobListCache) pageKey(ctx context.Context, limit, offset int) (string, error) {
	gen, err := c.client.Get(ctx, jobListGenKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("jobsift:jobs:v%d:limit=%d:offset=%d", gen, limit, offset), nil
}
