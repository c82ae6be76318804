package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"HarmonyCare/internal/models"
)

// sessionFrom 从请求头还原调用者身份。
// 网关在认证后注入这些头，本服务不做鉴权。
func sessionFrom(c *gin.Context) models.Session {
	return models.Session{
		UserID:  cast.ToUint(c.GetHeader("X-User-ID")),
		Role:    c.GetHeader("X-User-Role"),
		Name:    c.GetHeader("X-User-Name"),
		Contact: c.GetHeader("X-User-Contact"),
	}
}
