package handlers

import (
	"github.com/gin-gonic/gin"

	"HarmonyCare/internal/models"
	"HarmonyCare/pkg/response"
)

type contactRequest struct {
	Name          string `json:"name"`
	Contact       string `json:"contact"`
	ContactUserID *uint  `json:"contactUserId"`
	Priority      int    `json:"priority"`
}

func (h *Handlers) handleCreateContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailMsg(c, "invalid request body: "+err.Error())
		return
	}
	contact := &models.EmergencyContact{
		ElderlyID:     sessionFrom(c).UserID,
		Name:          req.Name,
		Contact:       req.Contact,
		ContactUserID: req.ContactUserID,
		Priority:      req.Priority,
	}
	if err := models.CreateEmergencyContact(h.db, contact); err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "contact created", contact)
}

func (h *Handlers) handleListContacts(c *gin.Context) {
	list, err := models.ListContactsByElderly(h.db, sessionFrom(c).UserID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", list)
}

func (h *Handlers) handleDeleteContact(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := models.DeleteEmergencyContact(h.db, sessionFrom(c).UserID, id); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "contact deleted", nil)
}
