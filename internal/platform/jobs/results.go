package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var ErrResultNotFound = errors.New("job result not found or expired")

// ResultStore keeps job outputs until they are downloaded or expire.
type ResultStore interface {
	Save(ctx context.Context, id string, out Output, ttl time.Duration) error
	Load(ctx context.Context, id string) (Output, error)
}

type memoryResult struct {
	out       Output
	expiresAt time.Time
}

type MemoryResults struct {
	mu      sync.Mutex
	results map[string]memoryResult
	now     func() time.Time
}

func NewMemoryResults() *MemoryResults {
	return &MemoryResults{results: map[string]memoryResult{}, now: time.Now}
}

func (m *MemoryResults) Save(_ context.Context, id string, out Output, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, r := range m.results {
		if !r.expiresAt.IsZero() && now.After(r.expiresAt) {
			delete(m.results, key)
		}
	}
	r := memoryResult{out: out}
	if ttl > 0 {
		r.expiresAt = now.Add(ttl)
	}
	m.results[id] = r
	return nil
}

func (m *MemoryResults) Load(_ context.Context, id string) (Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	if !ok || (!r.expiresAt.IsZero() && m.now().After(r.expiresAt)) {
		return Output{}, ErrResultNotFound
	}
	return r.out, nil
}

const redisKeyPrefix = "timesheets:job-result:"

// RedisResults shares job outputs between server instances.
type RedisResults struct {
	Client *redis.Client
}

func NewRedisResults(client *redis.Client) *RedisResults {
	return &RedisResults{Client: client}
}

func (r *RedisResults) Save(ctx context.Context, id string, out Output, ttl time.Duration) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, redisKeyPrefix+id, payload, ttl).Err()
}

func (r *RedisResults) Load(ctx context.Context, id string) (Output, error) {
	payload, err := r.Client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Output{}, ErrResultNotFound
	}
	if err != nil {
		return Output{}, err
	}
	var out Output
	if err := json.Unmarshal(payload, &out); err != nil {
		return Output{}, err
	}
	return out, nil
}
