package handlers

import (
	"github.com/gin-gonic/gin"

	"HarmonyCare/pkg/response"
)

type sendMessageRequest struct {
	ReceiverID uint   `json:"receiverId"`
	Content    string `json:"content"`
}

func (h *Handlers) handleSendMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailMsg(c, "invalid request body: "+err.Error())
		return
	}
	m, err := h.orchestrator.SendMessage(c.Request.Context(), sessionFrom(c), id, req.ReceiverID, req.Content)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "message sent", m)
}

func (h *Handlers) handleListMessages(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.orchestrator.ListMessages(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", list)
}
