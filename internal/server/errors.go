package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
	invitationdomain "github.com/gatherly/gatherly/internal/invitation/domain"
	membershipdomain "github.com/gatherly/gatherly/internal/membership/domain"
	organizationdomain "github.com/gatherly/gatherly/internal/organization/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
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
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErrs *ValidationErrors
	if errors.As(err, &vErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErrs.Errors,
		}
	}

	switch {
	case errors.Is(err, organizationdomain.ErrOrganizationNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}

	case errors.Is(err, membershipdomain.ErrNotAMember):
		return http.StatusNotFound, errorPayload{Type: "not_a_member", Message: "account holds no such membership"}

	case errors.Is(err, membershipdomain.ErrAlreadyMember):
		return http.StatusConflict, errorPayload{Type: "already_member", Message: "account already holds this role"}

	case errors.Is(err, accountdomain.ErrEmailTaken):
		return http.StatusConflict, errorPayload{Type: "email_taken", Message: "email already registered"}

	case errors.Is(err, invitationdomain.ErrTokenConsumed),
		errors.Is(err, invitationdomain.ErrTokenExpired):
		return http.StatusGone, errorPayload{Type: "invalid_token", Message: "invitation token no longer valid"}

	case errors.Is(err, invitationdomain.ErrTokenMismatch):
		return http.StatusConflict, errorPayload{Type: "invalid_token", Message: "invitation token was issued for a different organization"}

	case errors.Is(err, invitationdomain.ErrTokenNotFound),
		errors.Is(err, membershipdomain.ErrInvalidToken):
		return http.StatusNotFound, errorPayload{Type: "invalid_token", Message: "invitation token unknown"}

	case errors.Is(err, membershipdomain.ErrInvalidRole):
		return http.StatusBadRequest, errorPayload{Type: "invalid_role", Message: "role is not part of the catalog"}

	case errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, accountdomain.ErrInvalidEmail),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog feeds the request logger without leaking messages.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status == http.StatusNotFound:
		return payload.Type, "404"
	case status == http.StatusConflict:
		return payload.Type, "409"
	case status == http.StatusGone:
		return payload.Type, "410"
	case status >= http.StatusInternalServerError:
		return "internal", "500"
	default:
		return payload.Type, "400"
	}
}
