package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/internal/usercontext"
)

// AwardActivity handles POST /v1/activities: a client-reported
// activity (card flips, quiz answers, poll votes). The ledger makes
// repeats harmless, so clients may retry freely.
func (s *Server) AwardActivity(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req scoringdomain.AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, scoringdomain.ErrInvalidReference)
		return
	}
	req.UserID = userID.Int64()

	result, err := s.scoringSvc.Award(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// LogInteraction handles POST /v1/interactions: fire-and-forget
// engagement pings (daily visits and the like). The award runs after
// the response is written; callers get a 202 and nothing else.
func (s *Server) LogInteraction(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req scoringdomain.AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, scoringdomain.ErrInvalidReference)
		return
	}
	req.UserID = userID.Int64()

	if _, err := scoringdomain.ParseActivityType(req.ActivityType); err != nil {
		AbortWithError(c, err)
		return
	}

	s.scoringSvc.AwardAsync(c.Request.Context(), req)
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"accepted": true}})
}

// GetScore handles GET /v1/score.
func (s *Server) GetScore(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		ScopeType string `form:"scope_type"`
		ScopeID   string `form:"scope_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, scoringdomain.ErrInvalidScope)
		return
	}

	resp, err := s.scoringSvc.GetScore(c.Request.Context(), scoringdomain.ScoreRequest{
		UserID:    userID.Int64(),
		ScopeType: scoringdomain.ScopeType(query.ScopeType),
		ScopeID:   query.ScopeID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetStreak handles GET /v1/score/streak.
func (s *Server) GetStreak(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		ActivityType string `form:"activity_type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, scoringdomain.ErrUnknownActivityType)
		return
	}
	if query.ActivityType == "" {
		query.ActivityType = string(scoringdomain.ActivityCheckin)
	}

	activity, err := scoringdomain.ParseActivityType(query.ActivityType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	streak, err := s.scoringSvc.CalculateStreak(c.Request.Context(), userID.Int64(), activity)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"activity_type": activity,
		"streak_days":   streak,
	}})
}
