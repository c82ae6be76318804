package models

import (
	"time"

	"gorm.io/gorm"

	"HarmonyCare/pkg/errors"
)

type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:128"`
	Contact   string    `json:"contact" gorm:"size:64"` // 电话
	Role      string    `json:"role" gorm:"size:20;index"`
	Address   string    `json:"address" gorm:"size:255"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// CreateUser 创建用户（老人或志愿者）
func CreateUser(db *gorm.DB, user *User) error {
	if user.Name == "" {
		return errors.WithCode(errors.CodeValidation, "user name is required")
	}
	if user.Role != RoleElderly && user.Role != RoleVolunteer {
		return errors.WithCodef(errors.CodeValidation, "unknown role %q", user.Role)
	}
	return db.Create(user).Error
}

// GetUserByID 获取单个用户
func GetUserByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithCodef(errors.CodeNotFound, "user %d not found", id)
		}
		return nil, err
	}
	return &user, nil
}

// ListUsersByRole 按角色列出用户
func ListUsersByRole(db *gorm.DB, role string) ([]User, error) {
	var users []User
	if err := db.Where("role = ?", role).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
