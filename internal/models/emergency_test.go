package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"HarmonyCare/pkg/errors"
	"HarmonyCare/pkg/util"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := util.OpenDatabase("sqlite", "")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库在多连接下各自为政，测试里锁成单连接
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&User{}, &Emergency{}, &VolunteerStatus{}, &Message{},
		&Rating{}, &EmergencyContact{}, &PendingOperation{}, &Reminder{},
	))
	return db
}

func activeEmergency(t *testing.T, db *gorm.DB) *Emergency {
	t.Helper()
	e := &Emergency{
		ElderlyID:   1,
		ElderlyName: "王奶奶",
		Latitude:    39.9,
		Longitude:   116.4,
	}
	require.NoError(t, CreateEmergency(db, e))
	return e
}

func TestCreateEmergencyDefaults(t *testing.T) {
	db := newTestDB(t)
	e := activeEmergency(t, db)

	assert.Equal(t, StatusActive, e.Status)
	assert.Equal(t, 1, e.Version)
	assert.NotZero(t, e.Timestamp)
	assert.NotZero(t, e.ID)
}

func TestCreateEmergencyValidation(t *testing.T) {
	db := newTestDB(t)

	err := CreateEmergency(db, &Emergency{Latitude: 39.9, Longitude: 116.4})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	err = CreateEmergency(db, &Emergency{ElderlyID: 1, Latitude: 91, Longitude: 0})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	err = CreateEmergency(db, &Emergency{ElderlyID: 1, Latitude: 0, Longitude: -181})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	err = CreateEmergency(db, &Emergency{ElderlyID: 1, Status: "bogus"})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusActive, StatusAccepted))
	assert.True(t, CanTransition(StatusActive, StatusCancelled))
	assert.True(t, CanTransition(StatusAccepted, StatusCompleted))

	// 接单后不能再取消
	assert.False(t, CanTransition(StatusAccepted, StatusCancelled))

	assert.False(t, CanTransition(StatusActive, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusAccepted))
	assert.False(t, CanTransition(StatusCancelled, StatusActive))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
}

func TestUpdateEmergencyBumpsVersion(t *testing.T) {
	db := newTestDB(t)
	e := activeEmergency(t, db)

	vid := uint(7)
	e.Status = StatusAccepted
	e.VolunteerID = &vid
	require.NoError(t, UpdateEmergency(db, e, 1))

	got, err := GetEmergencyByID(db, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.Equal(t, 2, got.Version)
	require.NotNil(t, got.VolunteerID)
	assert.Equal(t, vid, *got.VolunteerID)
}

func TestUpdateEmergencyStaleVersion(t *testing.T) {
	db := newTestDB(t)
	e := activeEmergency(t, db)

	e.Status = StatusAccepted
	require.NoError(t, UpdateEmergency(db, e, 1))

	// 另一个持有版本1的写入者迟到了
	stale := *e
	stale.Status = StatusCancelled
	err := UpdateEmergency(db, &stale, 1)
	assert.True(t, errors.IsCode(err, errors.CodeStaleWrite))

	got, err := GetEmergencyByID(db, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
}

func TestUpdateEmergencyNotFound(t *testing.T) {
	db := newTestDB(t)
	err := UpdateEmergency(db, &Emergency{ID: 999, Status: StatusAccepted}, 1)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestConcurrentAcceptOnlyOneWins(t *testing.T) {
	db := newTestDB(t)
	e := activeEmergency(t, db)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vid := uint(100 + i)
			clone := *e
			clone.Status = StatusAccepted
			clone.VolunteerID = &vid
			errs[i] = UpdateEmergency(db, &clone, 1)
		}(i)
	}
	wg.Wait()

	ok, stale := 0, 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if errors.IsCode(err, errors.CodeStaleWrite) {
			stale++
		}
	}
	assert.Equal(t, 1, ok, "exactly one accept must win")
	assert.Equal(t, 1, stale, "the loser must see a stale write conflict")
}

func TestListAndCountQueries(t *testing.T) {
	db := newTestDB(t)
	vid := uint(5)

	first := activeEmergency(t, db)
	second := activeEmergency(t, db)

	second.Status = StatusAccepted
	second.VolunteerID = &vid
	require.NoError(t, UpdateEmergency(db, second, 1))
	second.Status = StatusCompleted
	require.NoError(t, UpdateEmergency(db, second, 2))

	active, err := ListEmergenciesByStatus(db, StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	byElderly, err := ListEmergenciesByElderly(db, 1)
	require.NoError(t, err)
	assert.Len(t, byElderly, 2)

	byVolunteer, err := ListEmergenciesByVolunteer(db, vid)
	require.NoError(t, err)
	require.Len(t, byVolunteer, 1)
	assert.Equal(t, second.ID, byVolunteer[0].ID)

	count, err := CountCompletedByVolunteer(db, vid)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
