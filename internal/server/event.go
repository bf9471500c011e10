package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	checkindomain "github.com/fanpulse/fanpulse/internal/checkin/domain"
	eventdomain "github.com/fanpulse/fanpulse/internal/event/domain"
)

// CreateEvent handles POST /v1/admin/events.
func (s *Server) CreateEvent(c *gin.Context) {
	var req eventdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, eventdomain.ErrInvalidName)
		return
	}

	resp, err := s.eventSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListEvents handles GET /v1/admin/events.
func (s *Server) ListEvents(c *gin.Context) {
	var query struct {
		Active  string `form:"active"`
		SortBy  string `form:"sort_by"`
		OrderBy string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, eventdomain.ErrInvalidCode)
		return
	}

	req := eventdomain.ListRequest{SortBy: query.SortBy, OrderBy: query.OrderBy}
	if query.Active != "" {
		active, err := strconv.ParseBool(query.Active)
		if err != nil {
			AbortWithError(c, eventdomain.ErrInvalidCode)
			return
		}
		req.Active = &active
	}

	events, err := s.eventSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

// GetEvent handles GET /v1/admin/events/:code.
func (s *Server) GetEvent(c *gin.Context) {
	resp, err := s.eventSvc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setEventActiveRequest struct {
	Active *bool `json:"active"`
}

// SetEventActive handles PATCH /v1/admin/events/:code/active.
func (s *Server) SetEventActive(c *gin.Context) {
	var req setEventActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		AbortWithError(c, eventdomain.ErrInvalidCode)
		return
	}

	resp, err := s.eventSvc.SetActive(c.Request.Context(), c.Param("code"), *req.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setEventPhaseRequest struct {
	Phase string `json:"phase"`
}

// SetEventPhase handles PATCH /v1/admin/events/:code/phase.
func (s *Server) SetEventPhase(c *gin.Context) {
	var req setEventPhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phase == "" {
		AbortWithError(c, eventdomain.ErrInvalidCode)
		return
	}

	resp, err := s.eventSvc.SetPhase(c.Request.Context(), c.Param("code"), req.Phase)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// MintToken handles POST /v1/admin/events/:code/tokens: signs a fresh
// proof token for a node so operators can print or project it.
func (s *Server) MintToken(c *gin.Context) {
	var req checkindomain.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, checkindomain.ErrInvalidInput)
		return
	}
	req.EventCode = c.Param("code")

	resp, err := s.checkinSvc.Mint(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
