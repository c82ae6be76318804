package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"HarmonyCare/internal/models"
	"HarmonyCare/internal/remote"
	"HarmonyCare/pkg/broadcast"
	"HarmonyCare/pkg/cache"
	"HarmonyCare/pkg/errors"
	"HarmonyCare/pkg/metrics"
	"HarmonyCare/pkg/notification"
	"HarmonyCare/pkg/websocket"
)

const (
	availabilityCachePrefix = "volunteer:available:"
	availabilityCacheTTL    = 30 * time.Second
	sideEffectTimeout       = 10 * time.Second
)

// Orchestrator 求助生命周期的唯一入口。
//
// 本地库永远是事实来源：先落本地，再尽力同步远端，失败就进离线队列。
// 广播、推送、WebSocket 都是 fire-and-forget，绝不反过来影响主流程的结果。
type Orchestrator struct {
	db          *gorm.DB
	remote      *remote.Client // nil 表示未启用远端同步
	broadcaster *broadcast.Channel
	notifier    notification.Sink
	hub         *websocket.Hub
	cache       cache.Cache
	logger      *zap.Logger
}

type Options struct {
	DB          *gorm.DB
	Remote      *remote.Client
	Broadcaster *broadcast.Channel
	Notifier    notification.Sink
	Hub         *websocket.Hub
	Cache       cache.Cache
	Logger      *zap.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notification.NopSink{}
	}
	return &Orchestrator{
		db:          opts.DB,
		remote:      opts.Remote,
		broadcaster: opts.Broadcaster,
		notifier:    notifier,
		hub:         opts.Hub,
		cache:       opts.Cache,
		logger:      opts.Logger,
	}
}

// 离线队列快照格式
type createOpPayload struct {
	LocalID   uint    `json:"local_id"`
	ElderlyID uint    `json:"elderly_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
	Status    string  `json:"status"`
}

type updateOpPayload struct {
	LocalID     uint   `json:"local_id"`
	RemoteID    string `json:"remote_id,omitempty"`
	Status      string `json:"status"`
	VolunteerID *uint  `json:"volunteer_id,omitempty"`
}

// TriggerSOS 老人按下求助键。
// 本地先落库，然后尝试上报远端（失败入队），最后局域网广播 + 推送可用志愿者。
func (o *Orchestrator) TriggerSOS(ctx context.Context, sess models.Session, latitude, longitude float64) (*models.Emergency, error) {
	if !sess.Valid() {
		return nil, errors.WithCode(errors.CodeValidation, "invalid session")
	}
	if !sess.IsElderly() {
		return nil, errors.WithCode(errors.CodeValidation, "only elderly users can trigger an SOS")
	}

	e := &models.Emergency{
		ElderlyID:      sess.UserID,
		ElderlyName:    sess.Name,
		ElderlyContact: sess.Contact,
		Latitude:       latitude,
		Longitude:      longitude,
		Status:         models.StatusActive,
	}
	if err := models.CreateEmergency(o.db, e); err != nil {
		return nil, err
	}
	metrics.EmergencyTransitions.WithLabelValues(models.StatusActive).Inc()

	o.syncCreate(ctx, e)
	o.fanOutCreated(*e)
	return e, nil
}

// Accept 志愿者抢单：active → accepted。
// 两个志愿者同时抢时，版本号保证只有一个成功，另一个拿到 StaleWrite。
func (o *Orchestrator) Accept(ctx context.Context, sess models.Session, emergencyID uint, version int) (*models.Emergency, error) {
	if !sess.Valid() {
		return nil, errors.WithCode(errors.CodeValidation, "invalid session")
	}
	if !sess.IsVolunteer() {
		return nil, errors.WithCode(errors.CodeValidation, "accepting requires a volunteer identity")
	}

	e, err := o.transition(ctx, emergencyID, version, models.StatusAccepted, func(e *models.Emergency) error {
		id := sess.UserID
		e.VolunteerID = &id
		e.VolunteerName = sess.Name
		e.VolunteerContact = sess.Contact
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.notifyAsync(notification.KindEmergencyAccepted, "志愿者已接单",
		fmt.Sprintf("%s 正在赶来的路上", sess.Name), e.ElderlyID)
	return e, nil
}

// Complete 救助结束：accepted → completed，只有接单的志愿者能操作
func (o *Orchestrator) Complete(ctx context.Context, sess models.Session, emergencyID uint, version int) (*models.Emergency, error) {
	if !sess.Valid() {
		return nil, errors.WithCode(errors.CodeValidation, "invalid session")
	}

	e, err := o.transition(ctx, emergencyID, version, models.StatusCompleted, func(e *models.Emergency) error {
		if e.VolunteerID == nil {
			return errors.WithCode(errors.CodeMissingResponder, "emergency has no assigned volunteer")
		}
		if *e.VolunteerID != sess.UserID {
			return errors.WithCode(errors.CodeValidation, "only the assigned volunteer can complete this emergency")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.notifyAsync(notification.KindEmergencyDone, "救助已完成",
		"本次求助已结束，您可以对志愿者进行评价", e.ElderlyID)
	return e, nil
}

// Cancel 老人主动取消：active → cancelled，只有发起人能操作
func (o *Orchestrator) Cancel(ctx context.Context, sess models.Session, emergencyID uint, version int) (*models.Emergency, error) {
	if !sess.Valid() {
		return nil, errors.WithCode(errors.CodeValidation, "invalid session")
	}

	e, err := o.transition(ctx, emergencyID, version, models.StatusCancelled, func(e *models.Emergency) error {
		if e.ElderlyID != sess.UserID {
			return errors.WithCode(errors.CodeValidation, "only the requester can cancel this emergency")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.VolunteerID != nil {
		o.notifyAsync(notification.KindEmergencyDone, "求助已取消",
			fmt.Sprintf("%s 取消了求助", e.ElderlyName), *e.VolunteerID)
	}
	return e, nil
}

// transition 通用状态迁移：读、校验、按版本号写、同步远端、扇出
func (o *Orchestrator) transition(ctx context.Context, emergencyID uint, version int, target string, mutate func(*models.Emergency) error) (*models.Emergency, error) {
	e, err := models.GetEmergencyByID(o.db, emergencyID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(e.Status, target) {
		return nil, errors.WithCodef(errors.CodeIllegalStateTransition,
			"cannot move emergency %d from %s to %s", emergencyID, e.Status, target)
	}
	if err := mutate(e); err != nil {
		return nil, err
	}
	e.Status = target
	if err := models.UpdateEmergency(o.db, e, version); err != nil {
		return nil, err
	}
	metrics.EmergencyTransitions.WithLabelValues(target).Inc()

	o.syncUpdate(ctx, e)
	o.fanOutUpdated(*e)
	return e, nil
}

// GetEmergency 查单条
func (o *Orchestrator) GetEmergency(ctx context.Context, id uint) (*models.Emergency, error) {
	return models.GetEmergencyByID(o.db, id)
}

// ListActive 进行中的求助列表（active + accepted）。
// 远端可达时先把远端的活跃单合并进本地再返回。
func (o *Orchestrator) ListActive(ctx context.Context, sess models.Session) ([]models.Emergency, error) {
	if o.remote != nil && o.remote.Probe(ctx) {
		remoteList, err := o.remote.ListActive(ctx, sess.UserID)
		if err != nil {
			o.logger.Warn("failed to pull active emergencies from remote", zap.Error(err))
		} else {
			o.mergeRemote(remoteList)
		}
	}
	return models.ListEmergenciesByStatus(o.db, models.StatusActive, models.StatusAccepted)
}

// ListHistory 按角色返回历史记录
func (o *Orchestrator) ListHistory(ctx context.Context, sess models.Session) ([]models.Emergency, error) {
	if sess.IsVolunteer() {
		return models.ListEmergenciesByVolunteer(o.db, sess.UserID)
	}
	return models.ListEmergenciesByElderly(o.db, sess.UserID)
}

// SendMessage 在求助会话里发消息，同时走局域网广播和推送
func (o *Orchestrator) SendMessage(ctx context.Context, sess models.Session, emergencyID, receiverID uint, content string) (*models.Message, error) {
	if !sess.Valid() {
		return nil, errors.WithCode(errors.CodeValidation, "invalid session")
	}
	if _, err := models.GetEmergencyByID(o.db, emergencyID); err != nil {
		return nil, err
	}

	m := &models.Message{
		EmergencyID: emergencyID,
		SenderID:    sess.UserID,
		SenderName:  sess.Name,
		ReceiverID:  receiverID,
		Content:     content,
	}
	if err := models.CreateMessage(o.db, m); err != nil {
		return nil, err
	}

	if o.broadcaster != nil {
		go func(msg models.Message) {
			if err := o.broadcaster.AnnounceMessage(broadcast.ChatPacket{
				EmergencyID: msg.EmergencyID,
				SenderID:    msg.SenderID,
				ReceiverID:  msg.ReceiverID,
				Body:        msg.Content,
				Timestamp:   msg.Timestamp,
			}); err != nil {
				o.logger.Warn("failed to broadcast chat message", zap.Error(err))
			}
			metrics.BroadcastsSent.Inc()
		}(*m)
	}
	o.notifyAsync(notification.KindChatMessage, sess.Name, content, receiverID)
	return m, nil
}

// ListMessages 整段会话
func (o *Orchestrator) ListMessages(ctx context.Context, emergencyID uint) ([]models.Message, error) {
	if _, err := models.GetEmergencyByID(o.db, emergencyID); err != nil {
		return nil, err
	}
	return models.ListMessagesByEmergency(o.db, emergencyID)
}

// SetAvailability 志愿者上下线，写库并刷新缓存
func (o *Orchestrator) SetAvailability(ctx context.Context, sess models.Session, available bool) error {
	if !sess.Valid() || !sess.IsVolunteer() {
		return errors.WithCode(errors.CodeValidation, "only volunteers have an availability flag")
	}
	if err := models.SetVolunteerAvailability(o.db, sess.UserID, available); err != nil {
		return err
	}
	if o.cache != nil {
		key := availabilityCachePrefix + strconv.FormatUint(uint64(sess.UserID), 10)
		if err := o.cache.Set(ctx, key, strconv.FormatBool(available), availabilityCacheTTL); err != nil {
			o.logger.Warn("failed to cache availability", zap.Error(err))
		}
	}
	return nil
}

// IsAvailable 先查缓存，未命中回落到库
func (o *Orchestrator) IsAvailable(ctx context.Context, volunteerID uint) (bool, error) {
	if o.cache != nil {
		key := availabilityCachePrefix + strconv.FormatUint(uint64(volunteerID), 10)
		if v, ok := o.cache.Get(ctx, key); ok {
			return cast.ToBool(v), nil
		}
	}
	return models.IsVolunteerAvailable(o.db, volunteerID)
}

// RateEmergency 老人评价一次已完成的救助
func (o *Orchestrator) RateEmergency(ctx context.Context, sess models.Session, emergencyID uint, score int, comment string) (*models.Rating, error) {
	if !sess.Valid() {
		return nil, errors.WithCode(errors.CodeValidation, "invalid session")
	}
	e, err := models.GetEmergencyByID(o.db, emergencyID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusCompleted {
		return nil, errors.WithCodef(errors.CodeIllegalStateTransition,
			"emergency %d is %s, only completed emergencies can be rated", emergencyID, e.Status)
	}
	if e.ElderlyID != sess.UserID {
		return nil, errors.WithCode(errors.CodeValidation, "only the requester can rate this emergency")
	}
	if e.VolunteerID == nil {
		return nil, errors.WithCode(errors.CodeMissingResponder, "emergency has no volunteer to rate")
	}

	r := &models.Rating{
		EmergencyID: emergencyID,
		ElderlyID:   e.ElderlyID,
		VolunteerID: *e.VolunteerID,
		Score:       score,
		Comment:     comment,
	}
	if err := models.CreateRating(o.db, r); err != nil {
		return nil, err
	}
	return r, nil
}

// syncCreate 新单上报远端；不可达或失败时入队
func (o *Orchestrator) syncCreate(ctx context.Context, e *models.Emergency) {
	if o.remote == nil {
		return
	}
	if o.remote.Probe(ctx) {
		remoteID, err := o.remote.CreateEmergency(ctx, e.ElderlyID, e.Latitude, e.Longitude, e.Timestamp, e.Status)
		if err == nil {
			e.RemoteID = remoteID
			if err := o.db.Model(&models.Emergency{}).Where("id = ?", e.ID).
				Update("remote_id", remoteID).Error; err != nil {
				o.logger.Warn("failed to persist remote id", zap.Error(err))
			}
			return
		}
		o.logger.Warn("remote create failed, queueing for replay", zap.Uint("emergency", e.ID), zap.Error(err))
	}
	o.enqueue(models.OpCreateEmergency, e.ID, createOpPayload{
		LocalID:   e.ID,
		ElderlyID: e.ElderlyID,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Timestamp: e.Timestamp,
		Status:    e.Status,
	})
}

// syncUpdate 状态变更上报远端；不可达或失败时入队
func (o *Orchestrator) syncUpdate(ctx context.Context, e *models.Emergency) {
	if o.remote == nil {
		return
	}
	if e.RemoteID != "" && o.remote.Probe(ctx) {
		err := o.remote.UpdateStatus(ctx, e.RemoteID, e.Status, e.VolunteerID)
		if err == nil {
			return
		}
		o.logger.Warn("remote update failed, queueing for replay", zap.Uint("emergency", e.ID), zap.Error(err))
	}
	o.enqueue(models.OpUpdateStatus, e.ID, updateOpPayload{
		LocalID:     e.ID,
		RemoteID:    e.RemoteID,
		Status:      e.Status,
		VolunteerID: e.VolunteerID,
	})
}

func (o *Orchestrator) enqueue(opType string, emergencyID uint, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.Error("failed to snapshot pending operation", zap.Error(err))
		return
	}
	op := &models.PendingOperation{OpType: opType, EmergencyID: emergencyID, Payload: string(data)}
	if err := models.EnqueueOperation(o.db, op); err != nil {
		o.logger.Error("failed to enqueue pending operation", zap.Error(err))
		return
	}
	metrics.PendingOperations.Inc()
}

// fanOutCreated 新单扇出：局域网广播 + 推送所有可用志愿者和家属 + WebSocket
func (o *Orchestrator) fanOutCreated(e models.Emergency) {
	if o.broadcaster != nil {
		go func() {
			if err := o.broadcaster.AnnounceEmergency(announcementOf(e)); err != nil {
				o.logger.Warn("failed to broadcast emergency", zap.Error(err))
				return
			}
			metrics.BroadcastsSent.Inc()
		}()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		volunteers, err := models.ListAvailableVolunteers(o.db)
		if err != nil {
			o.logger.Warn("failed to list available volunteers", zap.Error(err))
			return
		}
		for _, v := range volunteers {
			if err := o.notifier.Notify(ctx, notification.KindEmergencyNew, "附近有紧急求助",
				fmt.Sprintf("%s 需要帮助", e.ElderlyName), v.VolunteerID); err != nil {
				o.logger.Warn("failed to push emergency notification",
					zap.Uint("volunteer", v.VolunteerID), zap.Error(err))
			}
		}
	}()
	go o.alertFamily(e)
	if o.hub != nil {
		o.hub.Publish("emergency_created", e)
	}
}

// alertFamily 通知装了应用的家属；只有电话的联系人由客户端拨打
func (o *Orchestrator) alertFamily(e models.Emergency) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	contacts, err := models.ListContactsByElderly(o.db, e.ElderlyID)
	if err != nil {
		o.logger.Warn("failed to list emergency contacts", zap.Error(err))
		return
	}
	for _, c := range contacts {
		if c.ContactUserID == nil {
			continue
		}
		if err := o.notifier.Notify(ctx, notification.KindFamilyAlert, "家人发出紧急求助",
			fmt.Sprintf("%s 触发了紧急求助，请尽快联系", e.ElderlyName), *c.ContactUserID); err != nil {
			o.logger.Warn("failed to alert family contact",
				zap.Uint("contact", c.ID), zap.Error(err))
		}
	}
}

// fanOutUpdated 状态变更扇出：局域网广播 + WebSocket
func (o *Orchestrator) fanOutUpdated(e models.Emergency) {
	if o.broadcaster != nil {
		go func() {
			if err := o.broadcaster.AnnounceEmergency(announcementOf(e)); err != nil {
				o.logger.Warn("failed to broadcast emergency update", zap.Error(err))
				return
			}
			metrics.BroadcastsSent.Inc()
		}()
	}
	if o.hub != nil {
		o.hub.Publish("emergency_updated", e)
	}
}

func (o *Orchestrator) notifyAsync(kind, title, body string, targetUserID uint) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := o.notifier.Notify(ctx, kind, title, body, targetUserID); err != nil {
			o.logger.Warn("failed to push notification", zap.Uint("user", targetUserID), zap.Error(err))
		}
	}()
}

func announcementOf(e models.Emergency) broadcast.Announcement {
	return broadcast.Announcement{
		EmergencyID:      e.ID,
		ElderlyID:        e.ElderlyID,
		ElderlyName:      e.ElderlyName,
		ElderlyContact:   e.ElderlyContact,
		Latitude:         e.Latitude,
		Longitude:        e.Longitude,
		Status:           e.Status,
		VolunteerID:      e.VolunteerID,
		VolunteerName:    e.VolunteerName,
		VolunteerContact: e.VolunteerContact,
		Timestamp:        e.Timestamp,
	}
}

// mergeRemote 把远端单并入本地：没见过的建新行，已有的跟进远端状态，
// 让本地读逐步向远端收敛
func (o *Orchestrator) mergeRemote(list []remote.RemoteEmergency) {
	for _, re := range list {
		rid := re.ID.String()
		if rid == "" {
			continue
		}
		local, err := models.GetEmergencyByRemoteID(o.db, rid)
		if err == nil {
			o.followRemote(local, re)
			continue
		}
		if !errors.IsCode(err, errors.CodeNotFound) {
			o.logger.Warn("failed to check remote emergency", zap.Error(err))
			continue
		}
		e := &models.Emergency{
			RemoteID:    rid,
			ElderlyID:   re.ElderlyID,
			Latitude:    re.Latitude,
			Longitude:   re.Longitude,
			Status:      re.Status,
			VolunteerID: re.VolunteerID,
			Timestamp:   re.Timestamp,
		}
		if err := models.CreateEmergency(o.db, e); err != nil {
			o.logger.Warn("failed to merge remote emergency", zap.String("remote_id", rid), zap.Error(err))
		}
	}
}

// followRemote 远端状态领先时把本地行带版本号地推过去，和广播并入走同一套迁移校验
func (o *Orchestrator) followRemote(local *models.Emergency, re remote.RemoteEmergency) {
	if local.Status == re.Status || !models.CanTransition(local.Status, re.Status) {
		return
	}
	local.Status = re.Status
	if re.VolunteerID != nil {
		local.VolunteerID = re.VolunteerID
	}
	if err := models.UpdateEmergency(o.db, local, local.Version); err != nil {
		o.logger.Warn("failed to follow remote status",
			zap.Uint("emergency", local.ID), zap.String("remote_id", local.RemoteID), zap.Error(err))
		return
	}
	metrics.EmergencyTransitions.WithLabelValues(local.Status).Inc()
	if o.hub != nil {
		o.hub.Publish("emergency_updated", *local)
	}
}
