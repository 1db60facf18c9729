package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	chargedomain "github.com/lgltools/platform/internal/charge/domain"
	"github.com/lgltools/platform/internal/period"
	profiledomain "github.com/lgltools/platform/internal/profile/domain"
	tooldomain "github.com/lgltools/platform/internal/tool/domain"
	usagedomain "github.com/lgltools/platform/internal/usage/domain"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, chargedomain.ErrNotPending):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "charge is not pending",
		}
	case errors.Is(err, chargedomain.ErrNotProcessing):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "charge is not processing",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, tooldomain.ErrDuplicate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, period.ErrInvalidPeriod),
		errors.Is(err, usagedomain.ErrInvalidQuantity),
		errors.Is(err, usagedomain.ErrInvalidEventType),
		errors.Is(err, usagedomain.ErrToolDisabled),
		errors.Is(err, usagedomain.ErrToolNotAssigned),
		errors.Is(err, usagedomain.ErrToolDisabledForWorkspace),
		errors.Is(err, usagedomain.ErrRateNotConfigured),
		errors.Is(err, tooldomain.ErrInvalidSlug),
		errors.Is(err, tooldomain.ErrInvalidName),
		errors.Is(err, workspacedomain.ErrInvalidName),
		errors.Is(err, workspacedomain.ErrInvalidType),
		errors.Is(err, chargedomain.ErrInvalidAmount),
		errors.Is(err, chargedomain.ErrInvalidDescription),
		errors.Is(err, profiledomain.ErrInvalidEmail):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, usagedomain.ErrToolNotFound),
		errors.Is(err, tooldomain.ErrNotFound),
		errors.Is(err, workspacedomain.ErrNotFound),
		errors.Is(err, workspacedomain.ErrClientNotFound),
		errors.Is(err, chargedomain.ErrNotFound),
		errors.Is(err, profiledomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "tool_disabled":
		return "tool is disabled"
	case "tool_not_assigned":
		return "tool is not assigned to this workspace"
	case "tool_disabled_for_workspace":
		return "tool is disabled for this workspace"
	case "rate_not_configured":
		return "no billing rate configured for this tool"
	default:
		return "invalid value"
	}
}
