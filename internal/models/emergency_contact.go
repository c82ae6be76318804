package models

import (
	"time"

	"gorm.io/gorm"

	"HarmonyCare/pkg/errors"
)

// EmergencyContact 老人的紧急联系人（家属）。
// ContactUserID 非空时说明家属自己也装了应用，求助触发后直接推送；
// 只留了电话的联系人由客户端展示给志愿者拨打。
type EmergencyContact struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ElderlyID     uint      `json:"elderlyId" gorm:"index"`
	Name          string    `json:"name" gorm:"size:128"`
	Contact       string    `json:"contact" gorm:"size:64"`
	ContactUserID *uint     `json:"contactUserId,omitempty" gorm:"index"`
	Priority      int       `json:"priority"`
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// CreateEmergencyContact 新增联系人
func CreateEmergencyContact(db *gorm.DB, c *EmergencyContact) error {
	if c.ElderlyID == 0 {
		return errors.WithCode(errors.CodeValidation, "elderly id is required")
	}
	if c.Name == "" {
		return errors.WithCode(errors.CodeValidation, "contact name is required")
	}
	if c.Contact == "" {
		return errors.WithCode(errors.CodeValidation, "contact phone is required")
	}
	return db.Create(c).Error
}

// ListContactsByElderly 某位老人的联系人，优先级小的在前
func ListContactsByElderly(db *gorm.DB, elderlyID uint) ([]EmergencyContact, error) {
	var list []EmergencyContact
	if err := db.Where("elderly_id = ?", elderlyID).
		Order("priority ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteEmergencyContact 删除联系人，只能删自己名下的
func DeleteEmergencyContact(db *gorm.DB, elderlyID, id uint) error {
	res := db.Where("id = ? AND elderly_id = ?", id, elderlyID).Delete(&EmergencyContact{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.WithCodef(errors.CodeNotFound, "contact %d not found", id)
	}
	return nil
}
