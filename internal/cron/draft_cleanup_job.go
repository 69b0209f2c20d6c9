package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/courierbot-backend/pkg/logger"
)

const defaultDraftTTL = 24 * time.Hour

type draftPurger interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type DraftCleanupJobParams struct {
	Logger *logger.Logger
	Drafts draftPurger
	TTL    time.Duration
	Now    func() time.Time
}

func NewDraftCleanupJob(params DraftCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Drafts == nil {
		return nil, fmt.Errorf("draft store required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &draftCleanupJob{logg: params.Logger, drafts: params.Drafts, ttl: ttl, now: now}, nil
}

type draftCleanupJob struct {
	logg   *logger.Logger
	drafts draftPurger
	ttl    time.Duration
	now    func() time.Time
}

func (j *draftCleanupJob) Name() string { return "draft-cleanup" }

func (j *draftCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	deleted, err := j.drafts.DeleteStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("draft cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "draft cleanup complete")
	return nil
}
