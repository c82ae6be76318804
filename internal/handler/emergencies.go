package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"HarmonyCare/internal/models"
	"HarmonyCare/pkg/errors"
	"HarmonyCare/pkg/response"
)

type transitionFunc func(ctx context.Context, sess models.Session, emergencyID uint, version int) (*models.Emergency, error)

// 经纬度用指针区分"没传"和"在零点"，缺失定位的求助直接拒绝
type triggerSOSRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type transitionRequest struct {
	Version int `json:"version"`
}

func (h *Handlers) handleTriggerSOS(c *gin.Context) {
	var req triggerSOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailMsg(c, "invalid request body: "+err.Error())
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		response.Fail(c, errors.WithCode(errors.CodeValidation, "latitude and longitude are required"))
		return
	}
	e, err := h.orchestrator.TriggerSOS(c.Request.Context(), sessionFrom(c), *req.Latitude, *req.Longitude)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "emergency created", e)
}

func (h *Handlers) handleListActive(c *gin.Context) {
	list, err := h.orchestrator.ListActive(c.Request.Context(), sessionFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", list)
}

func (h *Handlers) handleListHistory(c *gin.Context) {
	list, err := h.orchestrator.ListHistory(c.Request.Context(), sessionFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", list)
}

func (h *Handlers) handleGetEmergency(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	e, err := h.orchestrator.GetEmergency(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", e)
}

func (h *Handlers) handleAccept(c *gin.Context) {
	h.handleTransition(c, h.orchestrator.Accept)
}

func (h *Handlers) handleComplete(c *gin.Context) {
	h.handleTransition(c, h.orchestrator.Complete)
}

func (h *Handlers) handleCancel(c *gin.Context) {
	h.handleTransition(c, h.orchestrator.Cancel)
}

// handleTransition 三个状态迁移接口共用的骨架：路径ID + 请求体里的版本号
func (h *Handlers) handleTransition(c *gin.Context, fn transitionFunc) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailMsg(c, "invalid request body: "+err.Error())
		return
	}
	e, err := fn(c.Request.Context(), sessionFrom(c), id, req.Version)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", e)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Fail(c, errors.WithCodef(errors.CodeValidation, "invalid id %q", c.Param("id")))
		return 0, false
	}
	return uint(id), true
}
