package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stemscribe/api/internal/model"
)

const jobKeyPrefix = "job:"

// RedisStore persists job records as JSON blobs under job:{id} keys.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a redis-backed job store. A zero ttl keeps records
// forever; retention beyond that is an operational concern.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
	}
}

var _ Store = (*RedisStore)(nil)

// Create stores a new job record, failing if the id is already taken.
func (s *RedisStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	if !ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
	}
	return nil
}

// Update applies a partial update inside a WATCH transaction so concurrent
// readers never observe a half-written record.
func (s *RedisStore) Update(ctx context.Context, jobID string, u Update) (*model.Job, error) {
	key := jobKey(jobID)

	for {
		var updated *model.Job

		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
			}
			if err != nil {
				return err
			}

			var job model.Job
			if err := json.Unmarshal(data, &job); err != nil {
				return fmt.Errorf("failed to unmarshal job: %w", err)
			}

			if err := merge(&job, u); err != nil {
				return err
			}
			job.UpdatedAt = time.Now().UTC()

			payload, err := json.Marshal(&job)
			if err != nil {
				return fmt.Errorf("failed to marshal job: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, s.ttl)
				return nil
			})
			if err != nil {
				return err
			}

			updated = &job
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
}

// Get returns the job or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
