package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"HarmonyCare/internal/service"
	"HarmonyCare/pkg/config"
	"HarmonyCare/pkg/websocket"
)

type Handlers struct {
	db           *gorm.DB
	orchestrator *service.Orchestrator
	hub          *websocket.Hub
}

func NewHandlers(db *gorm.DB, orchestrator *service.Orchestrator, hub *websocket.Hub) *Handlers {
	return &Handlers{
		db:           db,
		orchestrator: orchestrator,
		hub:          hub,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	r := engine.Group(config.GlobalConfig.APIPrefix)

	// Register System Module Routes
	h.registerSystemRoutes(r)

	// Register Business Module Routes
	h.registerEmergencyRoutes(r)
	h.registerVolunteerRoutes(r)
	h.registerContactRoutes(r)
	h.registerReminderRoutes(r)
	h.registerUserRoutes(r)

	if h.hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			h.hub.ServeWS(c.Writer, c.Request)
		})
	}
}

// Emergency Module：SOS 全生命周期
func (h *Handlers) registerEmergencyRoutes(r *gin.RouterGroup) {
	emergencies := r.Group("emergencies")
	{
		emergencies.POST("", h.handleTriggerSOS)

		emergencies.GET("/active", h.handleListActive)

		emergencies.GET("/history", h.handleListHistory)

		emergencies.GET("/:id", h.handleGetEmergency)

		emergencies.PUT("/:id/accept", h.handleAccept)

		emergencies.PUT("/:id/complete", h.handleComplete)

		emergencies.PUT("/:id/cancel", h.handleCancel)

		emergencies.POST("/:id/messages", h.handleSendMessage)

		emergencies.GET("/:id/messages", h.handleListMessages)

		emergencies.POST("/:id/rating", h.handleRateEmergency)

		emergencies.GET("/:id/rating", h.handleGetRating)
	}
}

// Volunteer Module：接单开关与统计
func (h *Handlers) registerVolunteerRoutes(r *gin.RouterGroup) {
	volunteers := r.Group("volunteers")
	{
		volunteers.PUT("/availability", h.handleSetAvailability)

		volunteers.GET("/available", h.handleListAvailable)

		volunteers.GET("/:id/availability", h.handleGetAvailability)

		volunteers.GET("/:id/stats", h.handleVolunteerStats)
	}
}

// Contact Module：紧急联系人（家属）
func (h *Handlers) registerContactRoutes(r *gin.RouterGroup) {
	contacts := r.Group("contacts")
	{
		contacts.POST("", h.handleCreateContact)

		contacts.GET("", h.handleListContacts)

		contacts.DELETE("/:id", h.handleDeleteContact)
	}
}

// Reminder Module：吃药/日程提醒
func (h *Handlers) registerReminderRoutes(r *gin.RouterGroup) {
	reminders := r.Group("reminders")
	{
		reminders.POST("", h.handleCreateReminder)

		reminders.GET("", h.handleListReminders)

		reminders.PUT("/:id", h.handleUpdateReminder)

		reminders.DELETE("/:id", h.handleDeleteReminder)
	}
}

// User Module
func (h *Handlers) registerUserRoutes(r *gin.RouterGroup) {
	users := r.Group("users")
	{
		users.POST("", h.handleCreateUser)

		users.GET("/:id", h.handleGetUser)
	}
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.GET("/health", h.HealthCheck)
	}
	// 远端同步客户端探测的就是这个路径
	r.GET("/health", h.HealthCheck)
}
