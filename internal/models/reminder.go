package models

import (
	"time"

	"gorm.io/gorm"

	"HarmonyCare/pkg/errors"
)

// 重复规则
const (
	RepeatNone   = "none"
	RepeatDaily  = "daily"
	RepeatWeekly = "weekly"
)

func ValidRepeatType(s string) bool {
	switch s {
	case RepeatNone, RepeatDaily, RepeatWeekly:
		return true
	}
	return false
}

// Reminder 吃药/日程提醒，到点后由后台扫描推送。
// 重复提醒推送后顺延到下一个周期，不标记已发送。
type Reminder struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"userId" gorm:"index"`
	Title      string    `json:"title" gorm:"size:128"`
	Content    string    `json:"content" gorm:"size:512"`
	RemindAt   time.Time `json:"remindAt" gorm:"index"`
	RepeatType string    `json:"repeatType" gorm:"size:16"`
	Sent       bool      `json:"sent" gorm:"index"`
	CreatedAt  time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// NextRemindAt 当前提醒时间之后的下一个触发点；不重复的提醒返回零值
func (r *Reminder) NextRemindAt(now time.Time) time.Time {
	var step time.Duration
	switch r.RepeatType {
	case RepeatDaily:
		step = 24 * time.Hour
	case RepeatWeekly:
		step = 7 * 24 * time.Hour
	default:
		return time.Time{}
	}
	next := r.RemindAt.Add(step)
	for !next.After(now) {
		next = next.Add(step)
	}
	return next
}

// CreateReminder 新建提醒
func CreateReminder(db *gorm.DB, r *Reminder) error {
	if r.UserID == 0 {
		return errors.WithCode(errors.CodeValidation, "user id is required")
	}
	if r.Title == "" {
		return errors.WithCode(errors.CodeValidation, "reminder title is required")
	}
	if r.RemindAt.IsZero() {
		return errors.WithCode(errors.CodeValidation, "remind time is required")
	}
	if r.RepeatType == "" {
		r.RepeatType = RepeatNone
	}
	if !ValidRepeatType(r.RepeatType) {
		return errors.WithCodef(errors.CodeValidation, "unknown repeat type %q", r.RepeatType)
	}
	return db.Create(r).Error
}

// GetReminderByID 获取单条提醒
func GetReminderByID(db *gorm.DB, id uint) (*Reminder, error) {
	var r Reminder
	if err := db.First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithCodef(errors.CodeNotFound, "reminder %d not found", id)
		}
		return nil, err
	}
	return &r, nil
}

// ListRemindersByUser 某用户的全部提醒，按提醒时间升序
func ListRemindersByUser(db *gorm.DB, userID uint) ([]Reminder, error) {
	var list []Reminder
	if err := db.Where("user_id = ?", userID).Order("remind_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateReminder 更新提醒内容和时间，改时间后重新待发
func UpdateReminder(db *gorm.DB, id uint, title, content string, remindAt time.Time, repeatType string) (*Reminder, error) {
	r, err := GetReminderByID(db, id)
	if err != nil {
		return nil, err
	}
	if repeatType == "" {
		repeatType = RepeatNone
	}
	if !ValidRepeatType(repeatType) {
		return nil, errors.WithCodef(errors.CodeValidation, "unknown repeat type %q", repeatType)
	}
	r.Title = title
	r.Content = content
	r.RemindAt = remindAt
	r.RepeatType = repeatType
	r.Sent = false
	if err := db.Save(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteReminder 删除提醒
func DeleteReminder(db *gorm.DB, id uint) error {
	return db.Delete(&Reminder{}, id).Error
}

// ListDueReminders 到点且未发送的提醒
func ListDueReminders(db *gorm.DB, now time.Time) ([]Reminder, error) {
	var list []Reminder
	if err := db.Where("sent = ? AND remind_at <= ?", false, now).Order("remind_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// MarkReminderSent 标记已发送
func MarkReminderSent(db *gorm.DB, id uint) error {
	return db.Model(&Reminder{}).Where("id = ?", id).Update("sent", true).Error
}

// RescheduleReminder 重复提醒推送后顺延到下一个触发点
func RescheduleReminder(db *gorm.DB, id uint, next time.Time) error {
	return db.Model(&Reminder{}).Where("id = ?", id).
		Updates(map[string]interface{}{"remind_at": next, "sent": false}).Error
}
