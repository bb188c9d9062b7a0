package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courseshare/courseshare-backend/pkg/logger"
)

const defaultExpiryBatch = 200

// SubscriptionExpiryJobParams configures the subscription expiry job.
type SubscriptionExpiryJobParams struct {
	Logger     *logger.Logger
	Repository endedSubscriptionExpirer
	BatchSize  int
	Now        func() time.Time
}

type endedSubscriptionExpirer interface {
	ExpireEnded(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// NewSubscriptionExpiryJob moves subscriptions that were set to cancel at period end
// into the expired state once their period is over.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionExpiryJob{
		logg:  params.Logger,
		repo:  params.Repository,
		batch: batch,
		now:   now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg  *logger.Logger
	repo  endedSubscriptionExpirer
	batch int
	now   func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

// Run drains ended subscriptions in batches until a short batch signals the end.
func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := j.repo.ExpireEnded(ctx, now, j.batch)
		if err != nil {
			return fmt.Errorf("expire subscriptions: %w", err)
		}
		total += len(ids)
		if len(ids) < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", total), "subscription expiry complete")
	return nil
}
