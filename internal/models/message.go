package models

import (
	"time"

	"gorm.io/gorm"

	"HarmonyCare/pkg/errors"
)

// Message 求助会话里的消息，只追加不修改
type Message struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	EmergencyID uint      `json:"emergencyId" gorm:"index"`
	SenderID    uint      `json:"senderId"`
	SenderName  string    `json:"senderName" gorm:"size:128"`
	ReceiverID  uint      `json:"receiverId"`
	Content     string    `json:"content" gorm:"size:1024"`
	Timestamp   int64     `json:"timestamp"` // 发送时刻，毫秒
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// CreateMessage 追加一条消息
func CreateMessage(db *gorm.DB, m *Message) error {
	if m.EmergencyID == 0 {
		return errors.WithCode(errors.CodeValidation, "emergency id is required")
	}
	if m.SenderID == 0 {
		return errors.WithCode(errors.CodeValidation, "sender id is required")
	}
	if m.Content == "" {
		return errors.WithCode(errors.CodeValidation, "message content is empty")
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	return db.Create(m).Error
}

// ListMessagesByEmergency 按发送时间升序返回整段会话
func ListMessagesByEmergency(db *gorm.DB, emergencyID uint) ([]Message, error) {
	var list []Message
	if err := db.Where("emergency_id = ?", emergencyID).Order("timestamp ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
