package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fanpulse/fanpulse/internal/usercontext"
)

// ListAchievements handles GET /v1/achievements: the user's unlocked
// trophies plus the catalog of what is still open.
func (s *Server) ListAchievements(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.achievementSvc.ListForUser(c.Request.Context(), userID.Int64())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ReconcileAchievements handles POST /v1/achievements/reconcile:
// re-runs every active criteria against the user's ledger and grants
// whatever a missed evaluation left behind.
func (s *Server) ReconcileAchievements(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	unlocks, err := s.achievementSvc.Reconcile(c.Request.Context(), userID.Int64())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"new_achievements": unlocks}})
}
