package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"HarmonyCare/internal/models"
	"HarmonyCare/pkg/response"
)

type reminderRequest struct {
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	RemindAt   time.Time `json:"remindAt"`
	RepeatType string    `json:"repeatType"`
}

func (h *Handlers) handleCreateReminder(c *gin.Context) {
	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailMsg(c, "invalid request body: "+err.Error())
		return
	}
	sess := sessionFrom(c)
	r := &models.Reminder{
		UserID:     sess.UserID,
		Title:      req.Title,
		Content:    req.Content,
		RemindAt:   req.RemindAt,
		RepeatType: req.RepeatType,
	}
	if err := models.CreateReminder(h.db, r); err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "reminder created", r)
}

func (h *Handlers) handleListReminders(c *gin.Context) {
	list, err := models.ListRemindersByUser(h.db, sessionFrom(c).UserID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", list)
}

func (h *Handlers) handleUpdateReminder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailMsg(c, "invalid request body: "+err.Error())
		return
	}
	r, err := models.UpdateReminder(h.db, id, req.Title, req.Content, req.RemindAt, req.RepeatType)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "reminder updated", r)
}

func (h *Handlers) handleDeleteReminder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := models.DeleteReminder(h.db, id); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "reminder deleted", nil)
}
