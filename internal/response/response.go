package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborline-tours/service-payments/internal/domain"
)

// envelope is the JSON body shape shared by all endpoints.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// SuccessMessage writes a 200 response with a human-readable message.
func SuccessMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

// BadRequest writes a 400 response with the given error message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope{Success: false, Error: message})
}

// Error maps a domain error to its HTTP status; anything else is a 500.
func Error(c *gin.Context, err error) {
	if de, ok := domain.AsDomainError(err); ok {
		c.JSON(de.HTTPStatus(), envelope{Success: false, Error: de.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, envelope{Success: false, Error: "internal server error"})
}

// Paginated writes a 200 response with pagination metadata.
func Paginated(c *gin.Context, data interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}
