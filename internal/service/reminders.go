package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"HarmonyCare/internal/models"
	"HarmonyCare/pkg/notification"
)

// ReminderSweeper 定时扫描到点的提醒并推送，由 cron 驱动
type ReminderSweeper struct {
	db       *gorm.DB
	notifier notification.Sink
	logger   *zap.Logger
}

func NewReminderSweeper(db *gorm.DB, notifier notification.Sink, logger *zap.Logger) *ReminderSweeper {
	if notifier == nil {
		notifier = notification.NopSink{}
	}
	return &ReminderSweeper{db: db, notifier: notifier, logger: logger}
}

// Run 一轮扫描。推送失败不标记已发送，下一轮会重试。
// 重复提醒推送后顺延到下一个周期，一次性提醒标记已发送。
func (s *ReminderSweeper) Run(ctx context.Context) {
	now := time.Now()
	due, err := models.ListDueReminders(s.db, now)
	if err != nil {
		s.logger.Error("failed to list due reminders", zap.Error(err))
		return
	}
	for _, r := range due {
		if err := s.notifier.Notify(ctx, notification.KindReminderDue, r.Title, r.Content, r.UserID); err != nil {
			s.logger.Warn("failed to push reminder", zap.Uint("reminder", r.ID), zap.Error(err))
			continue
		}
		if next := r.NextRemindAt(now); !next.IsZero() {
			if err := models.RescheduleReminder(s.db, r.ID, next); err != nil {
				s.logger.Error("failed to reschedule reminder", zap.Uint("reminder", r.ID), zap.Error(err))
			}
			continue
		}
		if err := models.MarkReminderSent(s.db, r.ID); err != nil {
			s.logger.Error("failed to mark reminder sent", zap.Uint("reminder", r.ID), zap.Error(err))
		}
	}
}
