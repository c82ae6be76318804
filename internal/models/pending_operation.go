package models

import (
	"time"

	"gorm.io/gorm"
)

// 离线队列里的操作类型
const (
	OpCreateEmergency = "create_emergency"
	OpUpdateStatus    = "update_status"
)

// PendingOperation 远端不可达时排队等待重放的操作。
// Payload 是操作时的 JSON 快照，重放时原样提交，不重新读库。
type PendingOperation struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	OpType      string    `json:"opType" gorm:"size:32"`
	EmergencyID uint      `json:"emergencyId" gorm:"index"`
	Payload     string    `json:"payload" gorm:"type:text"`
	RetryCount  int       `json:"retryCount"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// EnqueueOperation 入队
func EnqueueOperation(db *gorm.DB, op *PendingOperation) error {
	return db.Create(op).Error
}

// ListPendingOperations 全量取出，最早的在前（重放按入队顺序）
func ListPendingOperations(db *gorm.DB) ([]PendingOperation, error) {
	var ops []PendingOperation
	if err := db.Order("id ASC").Find(&ops).Error; err != nil {
		return nil, err
	}
	return ops, nil
}

// DeletePendingOperation 重放成功或放弃后出队
func DeletePendingOperation(db *gorm.DB, id uint) error {
	return db.Delete(&PendingOperation{}, id).Error
}

// BumpRetryCount 重放又失败了，计数 +1。
// 走 Update 让 updated_at 跟着刷新，退避间隔从最近一次失败算起。
func BumpRetryCount(db *gorm.DB, id uint) error {
	return db.Model(&PendingOperation{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
}

// CountPendingOperations 队列深度
func CountPendingOperations(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&PendingOperation{}).Count(&count).Error
	return count, err
}
