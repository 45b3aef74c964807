package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response envelope
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// write renders without HTML escaping so URLs and QR payloads stay readable
func write(c *gin.Context, status int, body Response) {
	c.PureJSON(status, body)
}

// Success 200 with data
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Response{Success: true, Data: data})
}

// SuccessWithMsg 200 with a message
func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	write(c, http.StatusOK, Response{Success: true, Message: msg, Data: data})
}

// Created 201
func Created(c *gin.Context, msg string, data interface{}) {
	write(c, http.StatusCreated, Response{Success: true, Message: msg, Data: data})
}

// Error failure envelope
func Error(c *gin.Context, status int, code, msg string) {
	write(c, status, Response{Success: false, Message: msg, Error: code})
}

// ErrorWithData failure envelope with details
func ErrorWithData(c *gin.Context, status int, code, msg string, data interface{}) {
	write(c, status, Response{Success: false, Message: msg, Data: data, Error: code})
}

// AbortWithError writes the envelope and stops the handler chain
func AbortWithError(c *gin.Context, appErr *AppError) {
	ErrorWithData(c, appErr.Status, appErr.Code, appErr.Message, appErr.Data)
	c.Abort()
}

// NotFound 404
func NotFound(c *gin.Context, msg string) {
	Error(c, http.StatusNotFound, CodeNotFound, msg)
}

// BadRequest 400
func BadRequest(c *gin.Context, code, msg string) {
	Error(c, http.StatusBadRequest, code, msg)
}
