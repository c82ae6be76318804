package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HarmonyCare/pkg/errors"
)

func TestVolunteerAvailabilityDefaultsToFalse(t *testing.T) {
	db := newTestDB(t)

	available, err := IsVolunteerAvailable(db, 42)
	require.NoError(t, err)
	assert.False(t, available)
}

func TestSetVolunteerAvailabilityUpsert(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, SetVolunteerAvailability(db, 42, true))
	available, err := IsVolunteerAvailable(db, 42)
	require.NoError(t, err)
	assert.True(t, available)

	// 同一志愿者再次设置不会多出一行
	require.NoError(t, SetVolunteerAvailability(db, 42, false))
	var count int64
	require.NoError(t, db.Model(&VolunteerStatus{}).Where("volunteer_id = ?", 42).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	available, err = IsVolunteerAvailable(db, 42)
	require.NoError(t, err)
	assert.False(t, available)
}

func TestListAvailableVolunteers(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, SetVolunteerAvailability(db, 1, true))
	require.NoError(t, SetVolunteerAvailability(db, 2, false))
	require.NoError(t, SetVolunteerAvailability(db, 3, true))

	list, err := ListAvailableVolunteers(db)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint(1), list[0].VolunteerID)
	assert.Equal(t, uint(3), list[1].VolunteerID)
}

func TestMessagesOrderedBySendTime(t *testing.T) {
	db := newTestDB(t)
	e := activeEmergency(t, db)

	require.NoError(t, CreateMessage(db, &Message{EmergencyID: e.ID, SenderID: 1, Content: "second", Timestamp: 200}))
	require.NoError(t, CreateMessage(db, &Message{EmergencyID: e.ID, SenderID: 2, Content: "first", Timestamp: 100}))

	list, err := ListMessagesByEmergency(db, e.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Content)
	assert.Equal(t, "second", list[1].Content)
}

func TestCreateMessageValidation(t *testing.T) {
	db := newTestDB(t)
	e := activeEmergency(t, db)

	err := CreateMessage(db, &Message{EmergencyID: e.ID, SenderID: 1})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	err = CreateMessage(db, &Message{SenderID: 1, Content: "hi"})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestRatingScoreBounds(t *testing.T) {
	db := newTestDB(t)

	err := CreateRating(db, &Rating{EmergencyID: 1, Score: 0})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	err = CreateRating(db, &Rating{EmergencyID: 1, Score: 6})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	require.NoError(t, CreateRating(db, &Rating{EmergencyID: 1, ElderlyID: 1, VolunteerID: 9, Score: 5}))
	require.NoError(t, CreateRating(db, &Rating{EmergencyID: 2, ElderlyID: 1, VolunteerID: 9, Score: 3}))

	avg, err := AverageRatingForVolunteer(db, 9)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, avg, 0.001)

	avg, err = AverageRatingForVolunteer(db, 999)
	require.NoError(t, err)
	assert.Zero(t, avg)
}

func TestPendingOperationQueueOrder(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, EnqueueOperation(db, &PendingOperation{OpType: OpCreateEmergency, EmergencyID: 1, Payload: "{}"}))
	require.NoError(t, EnqueueOperation(db, &PendingOperation{OpType: OpUpdateStatus, EmergencyID: 1, Payload: "{}"}))

	ops, err := ListPendingOperations(db)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, OpCreateEmergency, ops[0].OpType)
	assert.Equal(t, OpUpdateStatus, ops[1].OpType)

	enqueuedAt := ops[0].UpdatedAt
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, BumpRetryCount(db, ops[0].ID))
	require.NoError(t, BumpRetryCount(db, ops[0].ID))
	ops, err = ListPendingOperations(db)
	require.NoError(t, err)
	assert.Equal(t, 2, ops[0].RetryCount)
	// 退避从最近一次失败算起，所以计数时要顺带刷新 updated_at
	assert.True(t, ops[0].UpdatedAt.After(enqueuedAt))

	require.NoError(t, DeletePendingOperation(db, ops[0].ID))
	count, err := CountPendingOperations(db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestEmergencyContacts(t *testing.T) {
	db := newTestDB(t)

	assert.Error(t, CreateEmergencyContact(db, &EmergencyContact{ElderlyID: 1, Name: "女儿"}))
	assert.Error(t, CreateEmergencyContact(db, &EmergencyContact{Name: "女儿", Contact: "13900000001"}))

	uid := uint(12)
	require.NoError(t, CreateEmergencyContact(db, &EmergencyContact{
		ElderlyID: 1, Name: "邻居", Contact: "13900000002", Priority: 2,
	}))
	require.NoError(t, CreateEmergencyContact(db, &EmergencyContact{
		ElderlyID: 1, Name: "女儿", Contact: "13900000001", ContactUserID: &uid, Priority: 1,
	}))

	list, err := ListContactsByElderly(db, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "女儿", list[0].Name)
	require.NotNil(t, list[0].ContactUserID)
	assert.Equal(t, uid, *list[0].ContactUserID)

	// 不能删别人的联系人
	err = DeleteEmergencyContact(db, 99, list[0].ID)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	require.NoError(t, DeleteEmergencyContact(db, 1, list[0].ID))
	list, err = ListContactsByElderly(db, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDueReminders(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	past := &Reminder{UserID: 1, Title: "吃降压药", RemindAt: now.Add(-time.Minute)}
	future := &Reminder{UserID: 1, Title: "午饭", RemindAt: now.Add(time.Hour)}
	require.NoError(t, CreateReminder(db, past))
	require.NoError(t, CreateReminder(db, future))

	due, err := ListDueReminders(db, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, past.ID, due[0].ID)

	require.NoError(t, MarkReminderSent(db, past.ID))
	due, err = ListDueReminders(db, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	// 改时间后重新进入待发状态
	_, err = UpdateReminder(db, past.ID, "吃降压药", "", now.Add(-time.Second), RepeatNone)
	require.NoError(t, err)
	due, err = ListDueReminders(db, now)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestReminderRepeat(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	_, err := UpdateReminder(db, 999, "x", "", now, RepeatDaily)
	assert.Error(t, err)

	r := &Reminder{UserID: 1, Title: "吃降压药", RemindAt: now.Add(-2 * time.Minute), RepeatType: RepeatDaily}
	require.NoError(t, CreateReminder(db, r))

	next := r.NextRemindAt(now)
	assert.True(t, next.After(now))
	assert.WithinDuration(t, r.RemindAt.Add(24*time.Hour), next, time.Second)

	require.NoError(t, RescheduleReminder(db, r.ID, next))
	got, err := GetReminderByID(db, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Sent)
	assert.WithinDuration(t, next, got.RemindAt, time.Second)

	// 错过好几周的提醒一次推到未来，不会连发补偿
	weekly := &Reminder{UserID: 1, Title: "买菜", RemindAt: now.Add(-21 * 24 * time.Hour), RepeatType: RepeatWeekly}
	require.NoError(t, CreateReminder(db, weekly))
	assert.True(t, weekly.NextRemindAt(now).After(now))

	once := &Reminder{UserID: 1, Title: "复诊", RemindAt: now}
	require.NoError(t, CreateReminder(db, once))
	assert.Equal(t, RepeatNone, once.RepeatType)
	assert.True(t, once.NextRemindAt(now).IsZero())

	bad := &Reminder{UserID: 1, Title: "x", RemindAt: now, RepeatType: "hourly"}
	assert.Error(t, CreateReminder(db, bad))
}
