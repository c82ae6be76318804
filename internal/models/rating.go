package models

import (
	"time"

	"gorm.io/gorm"

	"HarmonyCare/pkg/errors"
)

// Rating 老人对一次救助的评价，一条求助最多一条
type Rating struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	EmergencyID uint      `json:"emergencyId" gorm:"uniqueIndex"`
	ElderlyID   uint      `json:"elderlyId" gorm:"index"`
	VolunteerID uint      `json:"volunteerId" gorm:"index"`
	Score       int       `json:"score"` // 1-5
	Comment     string    `json:"comment" gorm:"size:512"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// CreateRating 保存评价，分数必须在 1-5 之间
func CreateRating(db *gorm.DB, r *Rating) error {
	if r.EmergencyID == 0 {
		return errors.WithCode(errors.CodeValidation, "emergency id is required")
	}
	if r.Score < 1 || r.Score > 5 {
		return errors.WithCodef(errors.CodeValidation, "score %d out of range 1-5", r.Score)
	}
	return db.Create(r).Error
}

// GetRatingByEmergency 查某次求助的评价
func GetRatingByEmergency(db *gorm.DB, emergencyID uint) (*Rating, error) {
	var r Rating
	if err := db.Where("emergency_id = ?", emergencyID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithCodef(errors.CodeNotFound, "no rating for emergency %d", emergencyID)
		}
		return nil, err
	}
	return &r, nil
}

// AverageRatingForVolunteer 志愿者的平均分，没有评价时返回 0
func AverageRatingForVolunteer(db *gorm.DB, volunteerID uint) (float64, error) {
	var avg *float64
	err := db.Model(&Rating{}).
		Where("volunteer_id = ?", volunteerID).
		Select("AVG(score)").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}
