package response

import (
	"errors"
	"net/http"
	"time"

	"loyalty-topup/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// WebhookAck is the body the payment provider expects back from a webhook.
type WebhookAck struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope(c, data))
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope(c, data))
}

// Error sends an error response. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500.
func Error(c *gin.Context, err error) {
	status, code, msg := classify(err)
	c.JSON(status, ErrorResponse{
		ErrorCode: code,
		Message:   msg,
		RequestID: getRequestID(c),
		Timestamp: now(),
	})
}

// Ack acknowledges a webhook as handled.
func Ack(c *gin.Context) {
	c.JSON(http.StatusOK, WebhookAck{Success: true})
}

// Nack rejects a webhook using the status carried by err.
func Nack(c *gin.Context, err error) {
	status, _, msg := classify(err)
	c.JSON(status, WebhookAck{Success: false, Message: msg})
}

// Status returns the HTTP status Error or Nack would send for err.
func Status(err error) int {
	status, _, _ := classify(err)
	return status
}

func classify(err error) (int, string, string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus, appErr.Code, appErr.Message
	}
	return http.StatusInternalServerError, "SYS_000", "Internal server error"
}

func envelope(c *gin.Context, data interface{}) SuccessResponse {
	return SuccessResponse{Data: data, RequestID: getRequestID(c), Timestamp: now()}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// getRequestID retrieves request ID from context, or generates one.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
