package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VolunteerStatus 志愿者接单开关，默认不可用
type VolunteerStatus struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	VolunteerID uint      `json:"volunteerId" gorm:"uniqueIndex"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// SetVolunteerAvailability upsert：同一志愿者只有一行
func SetVolunteerAvailability(db *gorm.DB, volunteerID uint, available bool) error {
	status := VolunteerStatus{VolunteerID: volunteerID, Available: available}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "volunteer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"available", "updated_at"}),
	}).Create(&status).Error
}

// IsVolunteerAvailable 查不到记录时视为不可用
func IsVolunteerAvailable(db *gorm.DB, volunteerID uint) (bool, error) {
	var status VolunteerStatus
	err := db.Where("volunteer_id = ?", volunteerID).First(&status).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return status.Available, nil
}

// ListAvailableVolunteers 当前可接单的志愿者
func ListAvailableVolunteers(db *gorm.DB) ([]VolunteerStatus, error) {
	var list []VolunteerStatus
	if err := db.Where("available = ?", true).Order("volunteer_id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
