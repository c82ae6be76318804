package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"HarmonyCare/internal/models"
	"HarmonyCare/internal/remote"
)

func remoteFor(t *testing.T, handler http.Handler) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return remote.NewClient(remote.Config{BaseURL: srv.URL}, log)
}

func TestReplaySyncsQueuedCreate(t *testing.T) {
	db := newTestDB(t)

	// 先在远端不可达时积压一单
	o := newOrchestrator(t, db, unreachableRemote(t))
	e, err := o.TriggerSOS(context.Background(), elderly, 39.9, 116.4)
	require.NoError(t, err)

	client := remoteFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/health":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/emergencies" && r.Method == http.MethodPost:
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			assert.EqualValues(t, elderly.UserID, body["elderly_id"])
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 501}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	NewReplayer(db, client, 8, time.Nanosecond, zap.NewNop()).Run(context.Background())

	count, err := models.CountPendingOperations(db)
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := models.GetEmergencyByID(db, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "501", got.RemoteID)
}

func TestReplayUpdateWaitsForRemoteID(t *testing.T) {
	db := newTestDB(t)

	o := newOrchestrator(t, db, unreachableRemote(t))
	ctx := context.Background()
	e, err := o.TriggerSOS(ctx, elderly, 0, 0)
	require.NoError(t, err)
	_, err = o.Accept(ctx, volunteer, e.ID, e.Version)
	require.NoError(t, err)

	// 队列里现在是一条 create 加一条 update
	ops, err := models.ListPendingOperations(db)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	var updates int32
	client := remoteFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/health":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 900}`))
		case r.Method == http.MethodPut:
			atomic.AddInt32(&updates, 1)
			assert.Equal(t, "/api/emergencies/900", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}
	}))

	// 一轮之内：create 先重放拿到远端ID，update 紧随其后找到目标
	NewReplayer(db, client, 8, time.Nanosecond, zap.NewNop()).Run(context.Background())

	assert.EqualValues(t, 1, atomic.LoadInt32(&updates))
	count, err := models.CountPendingOperations(db)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReplayDropsAfterRetryBudget(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, models.EnqueueOperation(db, &models.PendingOperation{
		OpType:      models.OpCreateEmergency,
		EmergencyID: 1,
		Payload:     `{"local_id":1,"elderly_id":1,"latitude":0,"longitude":0,"timestamp":1,"status":"active"}`,
	}))

	client := remoteFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	replayer := NewReplayer(db, client, 2, time.Nanosecond, zap.NewNop())

	replayer.Run(context.Background())
	ops, err := models.ListPendingOperations(db)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, 1, ops[0].RetryCount)

	// 第二次失败达到预算上限，丢弃
	replayer.Run(context.Background())
	count, err := models.CountPendingOperations(db)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReplaySkipsWhenRemoteUnreachable(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, models.EnqueueOperation(db, &models.PendingOperation{
		OpType:  models.OpCreateEmergency,
		Payload: `{"local_id":1,"elderly_id":1,"status":"active"}`,
	}))

	NewReplayer(db, unreachableRemote(t), 2, time.Nanosecond, zap.NewNop()).Run(context.Background())

	ops, err := models.ListPendingOperations(db)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Zero(t, ops[0].RetryCount, "an unreachable remote must not consume the retry budget")
}

func TestReplayDropsCorruptPayload(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, models.EnqueueOperation(db, &models.PendingOperation{
		OpType:  models.OpCreateEmergency,
		Payload: "not json",
	}))

	client := remoteFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	NewReplayer(db, client, 8, time.Nanosecond, zap.NewNop()).Run(context.Background())

	count, err := models.CountPendingOperations(db)
	require.NoError(t, err)
	assert.Zero(t, count)
}
