package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "protein-advisor/internal/common/errors"
	"protein-advisor/internal/dialogue"
	"protein-advisor/internal/models"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// classify maps domain sentinels onto the error taxonomy.
func classify(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, models.ErrInvalidPersona):
		return apperrors.NewPersonaInvalidError(err)
	case errors.Is(err, dialogue.ErrPersonaLocked), errors.Is(err, dialogue.ErrSessionNotChatting):
		return apperrors.NewSessionStateInvalidError(err.Error())
	case errors.Is(err, dialogue.ErrEmptyTurn):
		return apperrors.NewInvalidRequestError("text must not be empty")
	}
	return apperrors.Normalize(err)
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodePersonaInvalid, apperrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case apperrors.ErrCodeSessionStateInvalid, apperrors.ErrCodeTurnInFlight:
		return http.StatusConflict
	case apperrors.ErrCodeCatalogLoadFailed, apperrors.ErrCodeCatalogSchemaInvalid, apperrors.ErrCodeCatalogEmpty:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	stdErr := classify(err)
	body := APIError{Message: stdErr.Message, Code: string(stdErr.Code)}
	status := statusFor(stdErr.Code)
	if status < http.StatusInternalServerError {
		body.Details = stdErr.Details
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}
