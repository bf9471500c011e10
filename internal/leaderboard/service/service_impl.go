package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/leaderboard/domain"
	"github.com/fanpulse/fanpulse/internal/observability/metrics"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("leaderboard.service"),
		metrics: p.Metrics,
	}
}

func (s *Service) Top(ctx context.Context, req domain.TopRequest) ([]domain.Entry, error) {
	scope, scopeID, err := normalizeScope(req.ScopeType, req.ScopeID)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 0 || limit > maxLimit {
		return nil, domain.ErrInvalidLimit
	}

	var aggs []scoringdomain.UserScoreAggregate
	err = s.db.WithContext(ctx).
		Where("scope_type = ? AND scope_id = ?", scope, scopeID).
		// The snowflake id of the aggregate row orders ties by who
		// reached the board first.
		Order("total_score DESC, id ASC").
		Limit(limit).
		Find(&aggs).Error
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLeaderboardQuery(ctx, string(scope))

	entries := make([]domain.Entry, 0, len(aggs))
	for i, agg := range aggs {
		entries = append(entries, domain.Entry{
			Rank:       i + 1,
			UserID:     snowflake.ID(agg.UserID).String(),
			TotalScore: agg.TotalScore,
			Level:      agg.Level,
		})
	}
	return entries, nil
}

func (s *Service) Position(ctx context.Context, req domain.PositionRequest) (*domain.PositionResponse, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	scope, scopeID, err := normalizeScope(req.ScopeType, req.ScopeID)
	if err != nil {
		return nil, err
	}

	var agg scoringdomain.UserScoreAggregate
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND scope_type = ? AND scope_id = ?", req.UserID, scope, scopeID).
		First(&agg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No aggregate yet: ranked after everyone on the board.
			var total int64
			if err := s.db.WithContext(ctx).
				Model(&scoringdomain.UserScoreAggregate{}).
				Where("scope_type = ? AND scope_id = ?", scope, scopeID).
				Count(&total).Error; err != nil {
				return nil, err
			}
			return &domain.PositionResponse{Rank: total + 1, Level: 1}, nil
		}
		return nil, err
	}

	var greater int64
	err = s.db.WithContext(ctx).
		Model(&scoringdomain.UserScoreAggregate{}).
		Where("scope_type = ? AND scope_id = ? AND total_score > ?", scope, scopeID, agg.TotalScore).
		Count(&greater).Error
	if err != nil {
		return nil, err
	}

	return &domain.PositionResponse{
		Rank:       greater + 1,
		TotalScore: agg.TotalScore,
		Level:      agg.Level,
	}, nil
}

func normalizeScope(scope scoringdomain.ScopeType, scopeID string) (scoringdomain.ScopeType, string, error) {
	if scope == "" {
		scope = scoringdomain.ScopeGlobal
	}
	scopeID = strings.TrimSpace(scopeID)

	switch scope {
	case scoringdomain.ScopeGlobal:
		return scope, "", nil
	case scoringdomain.ScopeEvent, scoringdomain.ScopePhase:
		if scopeID == "" {
			return "", "", domain.ErrInvalidScope
		}
		return scope, scopeID, nil
	default:
		return "", "", domain.ErrInvalidScope
	}
}
