package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"HarmonyCare/internal/models"
	"HarmonyCare/internal/remote"
	"HarmonyCare/pkg/metrics"
)

const maxBackoff = time.Hour

// Replayer 离线队列重放器，由调度器周期性驱动。
//
// 退避策略：第 n 次失败后等 base<<n 再试（封顶 1 小时），
// 超过最大重试次数直接丢弃并告警，不让死信把队列堵死。
type Replayer struct {
	db          *gorm.DB
	remote      *remote.Client
	maxRetries  int
	backoffBase time.Duration
	logger      *zap.Logger
}

func NewReplayer(db *gorm.DB, client *remote.Client, maxRetries int, backoffBase time.Duration, logger *zap.Logger) *Replayer {
	if maxRetries <= 0 {
		maxRetries = 8
	}
	if backoffBase <= 0 {
		backoffBase = 30 * time.Second
	}
	return &Replayer{
		db:          db,
		remote:      client,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		logger:      logger,
	}
}

// Run 执行一轮重放。远端整体不可达时整轮跳过，不消耗重试次数。
func (r *Replayer) Run(ctx context.Context) {
	if r.remote == nil {
		return
	}
	ops, err := models.ListPendingOperations(r.db)
	if err != nil {
		r.logger.Error("failed to load pending operations", zap.Error(err))
		return
	}
	metrics.PendingOperations.Set(float64(len(ops)))
	if len(ops) == 0 {
		return
	}
	if !r.remote.Probe(ctx) {
		r.logger.Debug("remote still unreachable, skipping replay round")
		return
	}

	for _, op := range ops {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if time.Now().Before(r.nextAttempt(op)) {
			continue
		}
		r.replayOne(ctx, op)
	}

	if count, err := models.CountPendingOperations(r.db); err == nil {
		metrics.PendingOperations.Set(float64(count))
	}
}

func (r *Replayer) nextAttempt(op models.PendingOperation) time.Time {
	if op.RetryCount == 0 {
		return op.CreatedAt
	}
	backoff := r.backoffBase << uint(op.RetryCount)
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	return op.UpdatedAt.Add(backoff)
}

func (r *Replayer) replayOne(ctx context.Context, op models.PendingOperation) {
	var err error
	switch op.OpType {
	case models.OpCreateEmergency:
		err = r.replayCreate(ctx, op)
	case models.OpUpdateStatus:
		err = r.replayUpdate(ctx, op)
	default:
		r.logger.Warn("dropping pending operation of unknown type",
			zap.Uint("op", op.ID), zap.String("type", op.OpType))
		r.drop(op)
		return
	}

	if errors.Is(err, errAlreadyDropped) {
		return
	}
	if err == nil {
		if derr := models.DeletePendingOperation(r.db, op.ID); derr != nil {
			r.logger.Error("replayed but failed to dequeue", zap.Uint("op", op.ID), zap.Error(derr))
			return
		}
		metrics.ReplayedOperations.WithLabelValues("synced").Inc()
		return
	}

	if op.RetryCount+1 >= r.maxRetries {
		r.logger.Warn("pending operation exceeded retry budget, dropping",
			zap.Uint("op", op.ID), zap.String("type", op.OpType),
			zap.Int("retries", op.RetryCount), zap.Error(err))
		r.drop(op)
		return
	}
	if berr := models.BumpRetryCount(r.db, op.ID); berr != nil {
		r.logger.Error("failed to bump retry count", zap.Uint("op", op.ID), zap.Error(berr))
	}
	metrics.ReplayedOperations.WithLabelValues("retried").Inc()
}

func (r *Replayer) drop(op models.PendingOperation) {
	if err := models.DeletePendingOperation(r.db, op.ID); err != nil {
		r.logger.Error("failed to drop pending operation", zap.Uint("op", op.ID), zap.Error(err))
		return
	}
	metrics.ReplayedOperations.WithLabelValues("dropped").Inc()
}

func (r *Replayer) replayCreate(ctx context.Context, op models.PendingOperation) error {
	var p createOpPayload
	if err := json.Unmarshal([]byte(op.Payload), &p); err != nil {
		r.logger.Warn("corrupt create payload, dropping", zap.Uint("op", op.ID), zap.Error(err))
		r.drop(op)
		return errAlreadyDropped
	}
	remoteID, err := r.remote.CreateEmergency(ctx, p.ElderlyID, p.Latitude, p.Longitude, p.Timestamp, p.Status)
	if err != nil {
		return err
	}
	// 把远端ID写回本地，后续的状态更新重放才能找到目标
	if err := r.db.Model(&models.Emergency{}).Where("id = ?", p.LocalID).
		Update("remote_id", remoteID).Error; err != nil {
		r.logger.Error("failed to persist replayed remote id",
			zap.Uint("emergency", p.LocalID), zap.Error(err))
	}
	return nil
}

func (r *Replayer) replayUpdate(ctx context.Context, op models.PendingOperation) error {
	var p updateOpPayload
	if err := json.Unmarshal([]byte(op.Payload), &p); err != nil {
		r.logger.Warn("corrupt update payload, dropping", zap.Uint("op", op.ID), zap.Error(err))
		r.drop(op)
		return errAlreadyDropped
	}
	remoteID := p.RemoteID
	if remoteID == "" {
		// 入队时本地单还没同步过，看现在有没有拿到远端ID
		e, err := models.GetEmergencyByID(r.db, p.LocalID)
		if err != nil {
			r.logger.Warn("update target vanished, dropping", zap.Uint("op", op.ID), zap.Error(err))
			r.drop(op)
			return errAlreadyDropped
		}
		if e.RemoteID == "" {
			return errNoRemoteID
		}
		remoteID = e.RemoteID
	}
	return r.remote.UpdateStatus(ctx, remoteID, p.Status, p.VolunteerID)
}

var (
	errNoRemoteID     = errors.New("emergency not yet created on remote")
	errAlreadyDropped = errors.New("operation already dropped")
)
