package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/courierbot-backend/pkg/logger"
)

type chatArchiver interface {
	ArchiveStale(ctx context.Context, cutoff time.Time) (int64, error)
	Retention() time.Duration
}

type ChatArchiveJobParams struct {
	Logger *logger.Logger
	Chat   chatArchiver
	Now    func() time.Time
}

// NewChatArchiveJob moves messages of orders closed longer than the chat
// retention into the archive.
func NewChatArchiveJob(params ChatArchiveJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Chat == nil {
		return nil, fmt.Errorf("chat service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &chatArchiveJob{logg: params.Logger, chat: params.Chat, now: now}, nil
}

type chatArchiveJob struct {
	logg *logger.Logger
	chat chatArchiver
	now  func() time.Time
}

func (j *chatArchiveJob) Name() string { return "chat-archive" }

func (j *chatArchiveJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.chat.Retention())
	archived, err := j.chat.ArchiveStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("chat archive: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"rows_archived": archived,
	}), "chat archive complete")
	return nil
}
