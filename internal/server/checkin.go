package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	checkindomain "github.com/fanpulse/fanpulse/internal/checkin/domain"
	"github.com/fanpulse/fanpulse/internal/usercontext"
)

type validateCheckinRequest struct {
	Token   string `json:"token"`
	EventID string `json:"event_id"`
}

// ValidateCheckin handles POST /v1/checkins: the scan endpoint. A
// failed validation is still HTTP 200 with valid=false; the failure
// code tells the client what to show.
func (s *Server) ValidateCheckin(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req validateCheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, checkindomain.ErrInvalidInput)
		return
	}

	result, err := s.checkinSvc.Validate(c.Request.Context(), checkindomain.ValidateRequest{
		UserID:          userID.Int64(),
		Token:           req.Token,
		ExpectedEventID: strings.TrimSpace(req.EventID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Code != "" {
		c.Set("scan_outcome", result.Code)
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
