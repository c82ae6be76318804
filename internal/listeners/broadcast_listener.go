package listeners

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"HarmonyCare/internal/models"
	"HarmonyCare/pkg/broadcast"
	"HarmonyCare/pkg/websocket"
)

// BroadcastListener 把局域网里其他设备的求助广播并入本地库。
// 去重键是 (elderly_id, timestamp)：同一次求助在不同设备上的本地ID各不相同。
type BroadcastListener struct {
	db      *gorm.DB
	channel *broadcast.Channel
	hub     *websocket.Hub
	logger  *zap.Logger
}

func NewBroadcastListener(db *gorm.DB, channel *broadcast.Channel, hub *websocket.Hub, logger *zap.Logger) *BroadcastListener {
	return &BroadcastListener{db: db, channel: channel, hub: hub, logger: logger}
}

// Start 在独立 goroutine 里阻塞收包，ctx 取消后退出
func (l *BroadcastListener) Start(ctx context.Context) {
	go func() {
		if err := l.channel.Listen(ctx, l.onEmergency, l.onMessage); err != nil {
			l.logger.Error("broadcast listener stopped", zap.Error(err))
		}
	}()
}

func (l *BroadcastListener) onEmergency(a broadcast.Announcement) {
	if a.ElderlyID == 0 || a.Timestamp == 0 {
		return
	}

	var existing models.Emergency
	err := l.db.Where("elderly_id = ? AND timestamp = ?", a.ElderlyID, a.Timestamp).First(&existing).Error
	switch {
	case err == nil:
		// 已知的求助，只跟进状态变化
		if existing.Status == a.Status || !models.CanTransition(existing.Status, a.Status) {
			return
		}
		existing.Status = a.Status
		existing.VolunteerID = a.VolunteerID
		existing.VolunteerName = a.VolunteerName
		existing.VolunteerContact = a.VolunteerContact
		if uerr := models.UpdateEmergency(l.db, &existing, existing.Version); uerr != nil {
			l.logger.Warn("failed to apply broadcast status update",
				zap.Uint("emergency", existing.ID), zap.Error(uerr))
			return
		}
		if l.hub != nil {
			l.hub.Publish("emergency_updated", existing)
		}
	case err == gorm.ErrRecordNotFound:
		e := &models.Emergency{
			ElderlyID:      a.ElderlyID,
			ElderlyName:    a.ElderlyName,
			ElderlyContact: a.ElderlyContact,
			Latitude:       a.Latitude,
			Longitude:      a.Longitude,
			Status:         a.Status,
			VolunteerID:    a.VolunteerID,
			Timestamp:      a.Timestamp,
		}
		if cerr := models.CreateEmergency(l.db, e); cerr != nil {
			l.logger.Warn("failed to store broadcast emergency", zap.Error(cerr))
			return
		}
		l.logger.Info("merged emergency from local network",
			zap.Uint("emergency", e.ID), zap.Uint("elderly", e.ElderlyID))
		if l.hub != nil {
			l.hub.Publish("emergency_created", *e)
		}
	default:
		l.logger.Warn("failed to look up broadcast emergency", zap.Error(err))
	}
}

func (l *BroadcastListener) onMessage(p broadcast.ChatPacket) {
	if p.EmergencyID == 0 || p.Body == "" {
		return
	}
	// 对应的求助不在本地库时直接丢弃，消息没有挂靠对象
	if _, err := models.GetEmergencyByID(l.db, p.EmergencyID); err != nil {
		return
	}
	m := &models.Message{
		EmergencyID: p.EmergencyID,
		SenderID:    p.SenderID,
		ReceiverID:  p.ReceiverID,
		Content:     p.Body,
		Timestamp:   p.Timestamp,
	}
	if err := models.CreateMessage(l.db, m); err != nil {
		l.logger.Warn("failed to store broadcast message", zap.Error(err))
		return
	}
	if l.hub != nil {
		l.hub.Publish("message_received", *m)
	}
}
