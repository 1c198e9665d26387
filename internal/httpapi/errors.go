package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/payment-settlement/internal/apperr"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RespondWithError writes statusCode with a caller-safe message.
func RespondWithError(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// respondAppError maps err through the apperr taxonomy.
func respondAppError(c *gin.Context, err error) {
	RespondWithError(c, apperr.HTTPStatus(err), apperr.PublicMessage(err))
}
