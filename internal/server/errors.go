package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
	favoritedomain "github.com/mirage-studio/mirage/internal/favorite/domain"
	generationdomain "github.com/mirage-studio/mirage/internal/generation/domain"
	paymentdomain "github.com/mirage-studio/mirage/internal/payment/domain"
	referraldomain "github.com/mirage-studio/mirage/internal/referral/domain"
	storagedomain "github.com/mirage-studio/mirage/internal/storage/domain"
	votedomain "github.com/mirage-studio/mirage/internal/vote/domain"
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
	ErrUnauthorized   = errors.New("unauthorized")
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

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, generationdomain.ErrContentPolicy):
		return http.StatusBadRequest, errorPayload{
			Type:    "content_policy_violation",
			Message: generationdomain.ContentPolicyMessage,
		}
	case errors.Is(err, generationdomain.ErrSourceFetch):
		return http.StatusBadRequest, errorPayload{
			Type:    "source_fetch_failed",
			Message: "could not fetch source image",
		}
	case errors.Is(err, creditdomain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: "insufficient credits",
		}
	case errors.Is(err, generationdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "rate limited, try again shortly",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "payments not configured",
		}
	case errors.Is(err, storagedomain.ErrNotConfigured):
		return http.StatusBadRequest, errorPayload{
			Type:    "storage_not_configured",
			Message: "object storage not configured",
		}
	case errors.Is(err, generationdomain.ErrGenerationFailed):
		return http.StatusInternalServerError, errorPayload{
			Type:    "generation_failed",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, creationdomain.ErrInvalidID),
		errors.Is(err, creationdomain.ErrInvalidArtifactURL),
		errors.Is(err, creationdomain.ErrInvalidModel),
		errors.Is(err, creationdomain.ErrInvalidKind),
		errors.Is(err, votedomain.ErrInvalidCreation),
		errors.Is(err, votedomain.ErrInvalidDirection),
		errors.Is(err, favoritedomain.ErrInvalidCreation),
		errors.Is(err, creditdomain.ErrInvalidUser),
		errors.Is(err, creditdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidPackage),
		errors.Is(err, paymentdomain.ErrMissingMetadata),
		errors.Is(err, referraldomain.ErrCodeRequired),
		errors.Is(err, generationdomain.ErrNoImage),
		errors.Is(err, generationdomain.ErrPromptRequired),
		errors.Is(err, generationdomain.ErrInvalidMode):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, creationdomain.ErrNotFound),
		errors.Is(err, votedomain.ErrCreationNotFound),
		errors.Is(err, favoritedomain.ErrCreationNotFound),
		errors.Is(err, paymentdomain.ErrOrderNotFound),
		errors.Is(err, referraldomain.ErrCodeNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func classifyErrorForLog(err error) string {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "server_error"
	}
	return payload.Type
}
