package handlers

import (
	"github.com/gin-gonic/gin"

	"HarmonyCare/internal/models"
	"HarmonyCare/pkg/response"
)

type rateRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func (h *Handlers) handleRateEmergency(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailMsg(c, "invalid request body: "+err.Error())
		return
	}
	r, err := h.orchestrator.RateEmergency(c.Request.Context(), sessionFrom(c), id, req.Score, req.Comment)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "rating saved", r)
}

func (h *Handlers) handleGetRating(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := models.GetRatingByEmergency(h.db, id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", r)
}
