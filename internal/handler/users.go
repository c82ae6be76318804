package handlers

import (
	"github.com/gin-gonic/gin"

	"HarmonyCare/internal/models"
	"HarmonyCare/pkg/response"
)

type createUserRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

func (h *Handlers) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailMsg(c, "invalid request body: "+err.Error())
		return
	}
	user := &models.User{
		Name:    req.Name,
		Contact: req.Contact,
		Role:    req.Role,
		Address: req.Address,
	}
	if err := models.CreateUser(h.db, user); err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "user created", user)
}

func (h *Handlers) handleGetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := models.GetUserByID(h.db, id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, "success", user)
}
