package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/markr-hq/markr-api/internal/models"
	appErrors "github.com/markr-hq/markr-api/pkg/errors"
)

const jobKeyPrefix = "markr:jobs:"

// JobStatusRepository is the Redis-backed side channel for import job
// lifecycle state. Entries carry a TTL, so job history expires on its own;
// the relational store never sees job records.
type JobStatusRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewJobStatusRepository constructs a job status repository.
func NewJobStatusRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *JobStatusRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobStatusRepository{client: client, ttl: ttl, logger: logger}
}

// Set writes the job record, refreshing its TTL.
func (r *JobStatusRepository) Set(ctx context.Context, job models.ImportJob) error {
	job.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	if err := r.client.Set(ctx, jobKeyPrefix+job.ID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set job %s: %w", job.ID, err)
	}
	return nil
}

// Get fetches one job record. Returns ErrCacheMiss when the entry has
// expired or never existed.
func (r *JobStatusRepository) Get(ctx context.Context, jobID string) (*models.ImportJob, error) {
	raw, err := r.client.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get job %s: %w", jobID, err)
	}
	var job models.ImportJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return &job, nil
}

// SweepInterrupted marks every entry still in processing state as
// interrupted. Run at startup: with an in-process queue, a job found
// processing before any worker has started can only belong to a worker that
// died mid-job. Returns the number of entries swept.
func (r *JobStatusRepository) SweepInterrupted(ctx context.Context) (int, error) {
	swept := 0
	iter := r.client.Scan(ctx, 0, jobKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return swept, fmt.Errorf("redis get %s: %w", key, err)
		}
		var job models.ImportJob
		if err := json.Unmarshal(raw, &job); err != nil {
			r.logger.Sugar().Warnw("skipping unreadable job entry", "key", key, "error", err)
			continue
		}
		if job.Status != models.ImportStatusProcessing {
			continue
		}
		job.Status = models.ImportStatusInterrupted
		job.ErrorMessage = "worker interrupted mid-job"
		if err := r.Set(ctx, job); err != nil {
			return swept, err
		}
		swept++
	}
	if err := iter.Err(); err != nil {
		return swept, fmt.Errorf("redis scan jobs: %w", err)
	}
	return swept, nil
}
