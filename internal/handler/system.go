package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"HarmonyCare/internal/models"
)

var startedAt = time.Now()

// HealthCheck 健康检查，同时被远端同步客户端用作可达性探测
func (h *Handlers) HealthCheck(c *gin.Context) {
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.Ping() != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
		return
	}
	pending, _ := models.CountPendingOperations(h.db)
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"uptime":             time.Since(startedAt).String(),
		"pending_operations": pending,
	})
}
