package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"HarmonyCare/pkg/errors"
)

type Body struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a 200 envelope
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Code: 0, Message: message, Data: data})
}

// Created writes a 201 envelope
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Body{Code: 0, Message: message, Data: data})
}

// Fail writes an error envelope; coded errors pick their own HTTP status.
// 只返回简短的错误消息，详细信息由调用方记日志
func Fail(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), Body{Code: errors.GetCode(err), Message: err.Error()})
}

// FailMsg writes a plain 400 with a message
func FailMsg(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Body{Code: errors.CodeValidation, Message: message})
}
