package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"HarmonyCare/internal/models"
	"HarmonyCare/pkg/errors"
)

type recordingSink struct {
	mu    sync.Mutex
	fail  bool
	kinds []string
	users []uint
}

func (s *recordingSink) Notify(ctx context.Context, kind, title, body string, targetUserID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.WithCode(errors.CodeTransientIO, "push gateway down")
	}
	s.kinds = append(s.kinds, kind)
	s.users = append(s.users, targetUserID)
	return nil
}

func TestSweepMarksOneShotSent(t *testing.T) {
	db := newTestDB(t)
	sink := &recordingSink{}
	s := NewReminderSweeper(db, sink, zap.NewNop())

	r := &models.Reminder{UserID: 7, Title: "复诊", RemindAt: time.Now().Add(-time.Minute)}
	require.NoError(t, models.CreateReminder(db, r))

	s.Run(context.Background())

	got, err := models.GetReminderByID(db, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Sent)
	assert.Equal(t, []uint{7}, sink.users)

	// 再扫一轮不会重复推送
	s.Run(context.Background())
	assert.Len(t, sink.kinds, 1)
}

func TestSweepReschedulesRepeating(t *testing.T) {
	db := newTestDB(t)
	sink := &recordingSink{}
	s := NewReminderSweeper(db, sink, zap.NewNop())

	r := &models.Reminder{UserID: 7, Title: "吃降压药", RemindAt: time.Now().Add(-time.Minute), RepeatType: models.RepeatDaily}
	require.NoError(t, models.CreateReminder(db, r))

	s.Run(context.Background())

	got, err := models.GetReminderByID(db, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Sent)
	assert.True(t, got.RemindAt.After(time.Now()))
	assert.Len(t, sink.kinds, 1)
}

func TestSweepRetriesAfterPushFailure(t *testing.T) {
	db := newTestDB(t)
	sink := &recordingSink{fail: true}
	s := NewReminderSweeper(db, sink, zap.NewNop())

	r := &models.Reminder{UserID: 7, Title: "复诊", RemindAt: time.Now().Add(-time.Minute)}
	require.NoError(t, models.CreateReminder(db, r))

	s.Run(context.Background())
	got, err := models.GetReminderByID(db, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Sent)

	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()

	s.Run(context.Background())
	got, err = models.GetReminderByID(db, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Sent)
}
