package notification

import "context"

// Kind of notification, carried to the client as an extra for routing.
const (
	KindEmergencyNew      = "emergency_new"
	KindEmergencyAccepted = "emergency_accepted"
	KindEmergencyDone     = "emergency_completed"
	KindFamilyAlert       = "family_alert"
	KindReminderDue       = "reminder_due"
	KindChatMessage       = "chat_message"
)

// Sink 通知出口：谁、什么标题、什么内容。失败绝不能阻塞主流程。
type Sink interface {
	Notify(ctx context.Context, kind, title, body string, targetUserID uint) error
}

// NopSink discards everything; used when push credentials are absent.
type NopSink struct{}

func (NopSink) Notify(ctx context.Context, kind, title, body string, targetUserID uint) error {
	return nil
}
