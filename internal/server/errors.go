package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	achievementdomain "github.com/fanpulse/fanpulse/internal/achievement/domain"
	checkindomain "github.com/fanpulse/fanpulse/internal/checkin/domain"
	eventdomain "github.com/fanpulse/fanpulse/internal/event/domain"
	leaderboarddomain "github.com/fanpulse/fanpulse/internal/leaderboard/domain"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ErrorHandlingMiddleware turns domain errors pushed via AbortWithError
// into JSON responses. Handlers that already wrote a body win.
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
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}

	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, checkindomain.ErrInvalidUser),
		errors.Is(err, scoringdomain.ErrInvalidUser),
		errors.Is(err, achievementdomain.ErrInvalidUser),
		errors.Is(err, leaderboarddomain.ErrInvalidUser):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "authentication required",
		}

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "insufficient privileges",
		}

	case errors.Is(err, checkindomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many scan attempts",
		}

	case errors.Is(err, eventdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "resource not found",
		}

	case errors.Is(err, eventdomain.ErrCodeTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}

	case errors.Is(err, scoringdomain.ErrUnknownActivityType),
		errors.Is(err, scoringdomain.ErrInvalidReference),
		errors.Is(err, scoringdomain.ErrInvalidScope),
		errors.Is(err, leaderboarddomain.ErrInvalidScope),
		errors.Is(err, leaderboarddomain.ErrInvalidLimit),
		errors.Is(err, eventdomain.ErrInvalidCode),
		errors.Is(err, eventdomain.ErrInvalidName),
		errors.Is(err, checkindomain.ErrInvalidInput):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "storage_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog labels request errors for the access log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", payload.Type
	case status == http.StatusTooManyRequests:
		return "throttled", payload.Type
	default:
		return "client", payload.Type
	}
}
