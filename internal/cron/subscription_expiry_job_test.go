package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeExpirer struct {
	batches [][]uuid.UUID
	calls   int
	lastNow time.Time
	err     error
}

func (f *fakeExpirer) ExpireEnded(_ context.Context, now time.Time, _ int) ([]uuid.UUID, error) {
	f.lastNow = now
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.batches) {
		f.calls++
		return nil, nil
	}
	batch := f.batches[f.calls]
	f.calls++
	return batch, nil
}

func TestSubscriptionExpiryJobDrainsBatches(t *testing.T) {
	now := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	repo := &fakeExpirer{batches: [][]uuid.UUID{
		{uuid.New(), uuid.New()},
		{uuid.New()},
	}}
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:     testLogger(),
		Repository: repo,
		BatchSize:  2,
		Now:        func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewSubscriptionExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("expected 2 batches, got %d", repo.calls)
	}
	if !repo.lastNow.Equal(now) {
		t.Fatalf("expected now %s, got %s", now, repo.lastNow)
	}
	if job.Name() != "subscription-expiry" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
}

func TestSubscriptionExpiryJobPropagatesErrors(t *testing.T) {
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:     testLogger(),
		Repository: &fakeExpirer{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("NewSubscriptionExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubscriptionExpiryJobRequiresRepository(t *testing.T) {
	if _, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error without repository")
	}
}
