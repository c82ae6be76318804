package models

import (
	"time"

	"gorm.io/gorm"

	"HarmonyCare/pkg/errors"
)

// 紧急求助状态机
//
//	active ──→ accepted ──→ completed
//	   │
//	   └──→ cancelled
//
// 已被接单的求助不能再取消，志愿者可能已经在路上了。
const (
	StatusActive    = "active"
	StatusAccepted  = "accepted"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validTransitions = map[string]map[string]bool{
	StatusActive:   {StatusAccepted: true, StatusCancelled: true},
	StatusAccepted: {StatusCompleted: true},
}

// CanTransition reports whether from→to is a legal lifecycle step.
// Terminal states (completed, cancelled) accept nothing.
func CanTransition(from, to string) bool {
	return validTransitions[from][to]
}

func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusAccepted, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Emergency SOS 求助记录
//
// Version 是乐观并发令牌：每次成功更新 +1，带着过期版本号的写入会被拒绝，
// 绝不静默覆盖（两个志愿者同时抢单时只有一个能成功）。
type Emergency struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	RemoteID         string    `json:"remoteId,omitempty" gorm:"size:64;index"` // 远端服务器分配的ID，未同步时为空
	ElderlyID        uint      `json:"elderlyId" gorm:"index"`
	ElderlyName      string    `json:"elderlyName" gorm:"size:128"`
	ElderlyContact   string    `json:"elderlyContact" gorm:"size:64"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Status           string    `json:"status" gorm:"size:20;index"`
	VolunteerID      *uint     `json:"volunteerId,omitempty" gorm:"index"`
	VolunteerName    string    `json:"volunteerName,omitempty" gorm:"size:128"`
	VolunteerContact string    `json:"volunteerContact,omitempty" gorm:"size:64"`
	Version          int       `json:"version"`
	Timestamp        int64     `json:"timestamp"` // 触发时刻，毫秒
	CreatedAt        time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// CreateEmergency 创建求助记录，初始版本为 1
func CreateEmergency(db *gorm.DB, e *Emergency) error {
	if e.ElderlyID == 0 {
		return errors.WithCode(errors.CodeValidation, "elderly id is required")
	}
	if e.Latitude < -90 || e.Latitude > 90 {
		return errors.WithCodef(errors.CodeValidation, "latitude %v out of range", e.Latitude)
	}
	if e.Longitude < -180 || e.Longitude > 180 {
		return errors.WithCodef(errors.CodeValidation, "longitude %v out of range", e.Longitude)
	}
	if e.Status == "" {
		e.Status = StatusActive
	}
	if !ValidStatus(e.Status) {
		return errors.WithCodef(errors.CodeValidation, "unknown status %q", e.Status)
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	e.Version = 1
	return db.Create(e).Error
}

// GetEmergencyByID 获取单条求助记录
func GetEmergencyByID(db *gorm.DB, id uint) (*Emergency, error) {
	var e Emergency
	if err := db.First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithCodef(errors.CodeNotFound, "emergency %d not found", id)
		}
		return nil, err
	}
	return &e, nil
}

// GetEmergencyByRemoteID 按远端ID查本地记录，用于广播/重放去重
func GetEmergencyByRemoteID(db *gorm.DB, remoteID string) (*Emergency, error) {
	var e Emergency
	if err := db.Where("remote_id = ?", remoteID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithCodef(errors.CodeNotFound, "emergency with remote id %s not found", remoteID)
		}
		return nil, err
	}
	return &e, nil
}

// UpdateEmergency 整行覆盖，但要求调用方持有的版本号仍是当前版本。
// 影响 0 行时区分两种情况：记录不存在（NotFound）或版本已过期（StaleWrite）。
func UpdateEmergency(db *gorm.DB, e *Emergency, expectedVersion int) error {
	e.Version = expectedVersion + 1
	res := db.Model(&Emergency{}).
		Where("id = ? AND version = ?", e.ID, expectedVersion).
		Select("remote_id", "status", "volunteer_id", "volunteer_name", "volunteer_contact", "version").
		Updates(e)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&Emergency{}).Where("id = ?", e.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errors.WithCodef(errors.CodeNotFound, "emergency %d not found", e.ID)
		}
		return errors.WithCodef(errors.CodeStaleWrite, "emergency %d was modified concurrently (expected version %d)", e.ID, expectedVersion)
	}
	return nil
}

// ListEmergenciesByStatus 按状态列出，最新的在前
func ListEmergenciesByStatus(db *gorm.DB, statuses ...string) ([]Emergency, error) {
	var list []Emergency
	if err := db.Where("status IN ?", statuses).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListEmergenciesByElderly 某位老人的历史记录，最新的在前
func ListEmergenciesByElderly(db *gorm.DB, elderlyID uint) ([]Emergency, error) {
	var list []Emergency
	if err := db.Where("elderly_id = ?", elderlyID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListEmergenciesByVolunteer 某位志愿者响应过的记录，最新的在前
func ListEmergenciesByVolunteer(db *gorm.DB, volunteerID uint) ([]Emergency, error) {
	var list []Emergency
	if err := db.Where("volunteer_id = ?", volunteerID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// CountCompletedByVolunteer 志愿者完成的救助次数
func CountCompletedByVolunteer(db *gorm.DB, volunteerID uint) (int64, error) {
	var count int64
	err := db.Model(&Emergency{}).
		Where("volunteer_id = ? AND status = ?", volunteerID, StatusCompleted).
		Count(&count).Error
	return count, err
}
