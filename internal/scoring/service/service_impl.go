package service

import (
	"context"
	"crypto/rand"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/clock"
	"github.com/fanpulse/fanpulse/internal/config"
	"github.com/fanpulse/fanpulse/internal/observability/metrics"
	"github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/internal/scoring/ledger"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Ledger  *ledger.Ledger
	Rules   *config.ScoringConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
	Eval    domain.Evaluator `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	ledger  *ledger.Ledger
	rules   *config.ScoringConfigHolder
	metrics *metrics.Metrics
	eval    domain.Evaluator
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("scoring.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		ledger:  p.Ledger,
		rules:   p.Rules,
		metrics: p.Metrics,
		eval:    p.Eval,
	}
}

func (s *Service) Award(ctx context.Context, req domain.AwardRequest) (*domain.AwardResult, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	activity, err := domain.ParseActivityType(req.ActivityType)
	if err != nil {
		return nil, err
	}

	refType := strings.TrimSpace(req.ReferenceType)
	refID := strings.TrimSpace(req.ReferenceID)
	if refType == "" || refID == "" {
		return nil, domain.ErrInvalidReference
	}

	// Retries of an already-recorded award must settle before any
	// point math runs.
	if existing, err := s.ledger.FindByReference(ctx, req.UserID, activity, refType, refID); err != nil {
		return nil, err
	} else if existing != nil {
		return s.alreadyAwarded(ctx, req.UserID)
	}

	rules := s.rules.Get()
	points := rules.Points[activity.String()]
	if req.Points != nil {
		points = *req.Points
	}

	now := s.clock.Now()
	if limit, ok := rules.DailyCaps[activity.String()]; ok && limit > 0 {
		count, err := s.ledger.CountOnDay(ctx, req.UserID, activity, now)
		if err != nil {
			return nil, err
		}
		if count >= limit {
			res, err := s.alreadyAwarded(ctx, req.UserID)
			if err != nil {
				return nil, err
			}
			res.AlreadyAwarded = false
			res.CapReached = true
			return res, nil
		}
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		// Deterministic so independent retries of the same logical
		// action still collapse onto one row.
		key = strings.Join([]string{activity.String(), refType, refID}, ":")
	}

	ev := &domain.ScoreEvent{
		ID:             s.genID.Generate().Int64(),
		UserID:         req.UserID,
		ActivityType:   activity,
		Points:         points,
		ReferenceType:  refType,
		ReferenceID:    refID,
		EventID:        strings.TrimSpace(req.EventID),
		ChapterID:      strings.TrimSpace(req.ChapterID),
		CardIndex:      req.CardIndex,
		Phase:          strings.TrimSpace(req.Phase),
		IdempotencyKey: key,
		CreatedAt:      now,
	}
	if req.Metadata != nil {
		ev.Metadata = datatypes.JSONMap(req.Metadata)
	}

	var total int64
	var level int
	inserted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txLedger := s.ledger.WithTx(tx)

		ok, err := txLedger.Append(ctx, ev)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		inserted = true

		total, level, err = s.applyToAggregates(ctx, txLedger, ev)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !inserted {
		// A concurrent writer won the append; report their outcome.
		return s.alreadyAwarded(ctx, req.UserID)
	}

	s.metrics.RecordScoreEvent(ctx, activity.String())
	s.log.Info("activity awarded",
		zap.String("user_id", snowflake.ID(req.UserID).String()),
		zap.String("activity_type", activity.String()),
		zap.String("reference", refType+"/"+refID),
		zap.Int64("points", points),
	)

	result := &domain.AwardResult{
		PointsAwarded: points,
		TotalScore:    total,
		Level:         level,
	}

	unlocks := s.evaluateAchievements(ctx, req.UserID, ev)
	if len(unlocks) > 0 {
		result.NewAchievements = unlocks
		// Bonus points moved the totals; re-read so the caller sees
		// the post-unlock state.
		if agg, err := s.ledger.GetAggregate(ctx, req.UserID, domain.ScopeGlobal, ""); err == nil && agg != nil {
			result.TotalScore = agg.TotalScore
			result.Level = agg.Level
		}
	}

	return result, nil
}

// applyToAggregates increments every scope the event touches and
// recomputes the global level. Returns the new global total and level.
func (s *Service) applyToAggregates(ctx context.Context, lg *ledger.Ledger, ev *domain.ScoreEvent) (int64, int, error) {
	now := ev.CreatedAt

	total, err := lg.AddToAggregate(ctx, s.genID.Generate().Int64(), ev.UserID, domain.ScopeGlobal, "", ev.Points, now)
	if err != nil {
		return 0, 0, err
	}

	level := domain.ComputeLevel(s.rules.Get().Levels, total)
	if err := lg.SetLevel(ctx, ev.UserID, domain.ScopeGlobal, "", level, now); err != nil {
		return 0, 0, err
	}

	if ev.EventID != "" {
		eventTotal, err := lg.AddToAggregate(ctx, s.genID.Generate().Int64(), ev.UserID, domain.ScopeEvent, ev.EventID, ev.Points, now)
		if err != nil {
			return 0, 0, err
		}
		eventLevel := domain.ComputeLevel(s.rules.Get().Levels, eventTotal)
		if err := lg.SetLevel(ctx, ev.UserID, domain.ScopeEvent, ev.EventID, eventLevel, now); err != nil {
			return 0, 0, err
		}
	}

	if ev.Phase != "" {
		if _, err := lg.AddToAggregate(ctx, s.genID.Generate().Int64(), ev.UserID, domain.ScopePhase, ev.Phase, ev.Points, now); err != nil {
			return 0, 0, err
		}
	}

	return total, level, nil
}

// alreadyAwarded builds the idempotent no-op result from the current
// aggregate state.
func (s *Service) alreadyAwarded(ctx context.Context, userID int64) (*domain.AwardResult, error) {
	res := &domain.AwardResult{AlreadyAwarded: true}
	agg, err := s.ledger.GetAggregate(ctx, userID, domain.ScopeGlobal, "")
	if err != nil {
		return nil, err
	}
	if agg != nil {
		res.TotalScore = agg.TotalScore
		res.Level = agg.Level
	} else {
		res.Level = 1
	}
	return res, nil
}

func (s *Service) evaluateAchievements(ctx context.Context, userID int64, ev *domain.ScoreEvent) []domain.Unlock {
	if s.eval == nil || ev.ActivityType == domain.ActivityAchievementBonus {
		return nil
	}
	unlocks, err := s.eval.EvaluateOnAward(ctx, userID, ev)
	if err != nil {
		// The award is committed; evaluation can be re-run later.
		s.log.Warn("achievement evaluation failed",
			zap.String("user_id", snowflake.ID(userID).String()),
			zap.Error(err),
		)
		return nil
	}
	return unlocks
}

func (s *Service) AwardAsync(ctx context.Context, req domain.AwardRequest) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		req.IdempotencyKey = ulid.MustNew(ulid.Timestamp(s.clock.Now()), rand.Reader).String()
	}

	// Detach from the request context so writing the response does not
	// cancel the award mid-transaction.
	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.Award(bg, req); err != nil {
			s.log.Warn("background award failed",
				zap.String("user_id", snowflake.ID(req.UserID).String()),
				zap.String("activity_type", req.ActivityType),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) GetScore(ctx context.Context, req domain.ScoreRequest) (*domain.ScoreResponse, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	scope := req.ScopeType
	if scope == "" {
		scope = domain.ScopeGlobal
	}
	switch scope {
	case domain.ScopeGlobal, domain.ScopeEvent, domain.ScopePhase:
	default:
		return nil, domain.ErrInvalidScope
	}

	agg, err := s.ledger.GetAggregate(ctx, req.UserID, scope, strings.TrimSpace(req.ScopeID))
	if err != nil {
		return nil, err
	}

	resp := &domain.ScoreResponse{
		UserID:    snowflake.ID(req.UserID).String(),
		ScopeType: scope,
		ScopeID:   strings.TrimSpace(req.ScopeID),
		Level:     1,
	}
	if agg != nil {
		resp.TotalScore = agg.TotalScore
		resp.Level = agg.Level
		resp.UpdatedAt = agg.UpdatedAt
	}
	return resp, nil
}

func (s *Service) CalculateStreak(ctx context.Context, userID int64, activityType domain.ActivityType) (int, error) {
	if userID == 0 {
		return 0, domain.ErrInvalidUser
	}
	if !activityType.Valid() {
		return 0, domain.ErrUnknownActivityType
	}

	stamps, err := s.ledger.ActivityTimestamps(ctx, userID, activityType)
	if err != nil {
		return 0, err
	}
	return domain.ConsecutiveDays(stamps), nil
}
