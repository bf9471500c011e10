package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	lbdomain "github.com/fanpulse/fanpulse/internal/leaderboard/domain"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/internal/usercontext"
)

type leaderboardQuery struct {
	ScopeType string `form:"scope_type"`
	ScopeID   string `form:"scope_id"`
	Limit     int    `form:"limit"`
}

// GetLeaderboard handles GET /v1/leaderboard.
func (s *Server) GetLeaderboard(c *gin.Context) {
	var query leaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, lbdomain.ErrInvalidScope)
		return
	}

	entries, err := s.leaderboardSvc.Top(c.Request.Context(), lbdomain.TopRequest{
		ScopeType: scoringdomain.ScopeType(query.ScopeType),
		ScopeID:   query.ScopeID,
		Limit:     query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// GetLeaderboardPosition handles GET /v1/leaderboard/position: the
// acting user's rank, total and level within a scope.
func (s *Server) GetLeaderboardPosition(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query leaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, lbdomain.ErrInvalidScope)
		return
	}

	resp, err := s.leaderboardSvc.Position(c.Request.Context(), lbdomain.PositionRequest{
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
