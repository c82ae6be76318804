package handlers

import (
	"github.com/gin-gonic/gin"

	"HarmonyCare/internal/models"
	"HarmonyCare/pkg/response"
)

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (h *Handlers) handleSetAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailMsg(c, "invalid request body: "+err.Error())
		return
	}
	if err := h.orchestrator.SetAvailability(c.Request.Context(), sessionFrom(c), req.Available); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "availability updated", gin.H{"available": req.Available})
}

func (h *Handlers) handleGetAvailability(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	available, err := h.orchestrator.IsAvailable(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", gin.H{"available": available})
}

func (h *Handlers) handleListAvailable(c *gin.Context) {
	list, err := models.ListAvailableVolunteers(h.db)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", list)
}

// handleVolunteerStats 志愿者的完成单数和平均评分
func (h *Handlers) handleVolunteerStats(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	completed, err := models.CountCompletedByVolunteer(h.db, id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	avg, err := models.AverageRatingForVolunteer(h.db, id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", gin.H{
		"completedCount": completed,
		"averageRating":  avg,
	})
}
