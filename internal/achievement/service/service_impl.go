package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/achievement/domain"
	"github.com/fanpulse/fanpulse/internal/clock"
	"github.com/fanpulse/fanpulse/internal/config"
	"github.com/fanpulse/fanpulse/internal/observability/metrics"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/internal/scoring/ledger"
	"github.com/fanpulse/fanpulse/pkg/db"
	"github.com/fanpulse/fanpulse/pkg/repository"
)

const bonusReferenceType = "achievement"

// maxEvaluationPasses bounds cascade evaluation: a bonus can push the
// score over another threshold, so passes repeat until quiescent.
const maxEvaluationPasses = 4

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Ledger  *ledger.Ledger
	Rules   *config.ScoringConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
	Defs    repository.Repository[domain.Definition]
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	ledger  *ledger.Ledger
	rules   *config.ScoringConfigHolder
	metrics *metrics.Metrics
	defs    repository.Repository[domain.Definition]
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("achievement.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		ledger:  p.Ledger,
		rules:   p.Rules,
		metrics: p.Metrics,
		defs:    p.Defs,
	}
}

func (s *Service) EvaluateOnAward(ctx context.Context, userID int64, _ *scoringdomain.ScoreEvent) ([]scoringdomain.Unlock, error) {
	return s.evaluate(ctx, userID)
}

func (s *Service) Reconcile(ctx context.Context, userID int64) ([]scoringdomain.Unlock, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	unlocks, err := s.evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repairBonuses(ctx, userID); err != nil {
		return nil, err
	}
	return unlocks, nil
}

// repairBonuses re-appends any bonus whose unlock row committed but
// whose ledger entry never landed, e.g. a crash between the two
// writes. The deterministic idempotency key makes the re-append a
// no-op when the bonus is already there. Retired definitions are
// included: their unlocks still owe their points.
func (s *Service) repairBonuses(ctx context.Context, userID int64) error {
	defs, err := s.defs.Find(ctx, &domain.Definition{})
	if err != nil {
		return err
	}

	unlocked, err := s.unlockedIDs(ctx, userID)
	if err != nil {
		return err
	}

	for _, def := range defs {
		if def.PointsBonus <= 0 {
			continue
		}
		if _, ok := unlocked[def.ID]; !ok {
			continue
		}

		existing, err := s.ledger.FindByReference(ctx, userID, scoringdomain.ActivityAchievementBonus, bonusReferenceType, def.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		if err := s.applyBonus(ctx, userID, def); err != nil {
			return err
		}
		s.log.Info("achievement bonus repaired",
			zap.String("user_id", snowflake.ID(userID).String()),
			zap.String("achievement", def.Code),
			zap.Int64("points_bonus", def.PointsBonus),
		)
	}
	return nil
}

// evaluate runs passes over the active definitions until no new
// unlock lands. Every check re-reads storage, so a crashed or
// previously failed evaluation is simply picked up by the next run.
func (s *Service) evaluate(ctx context.Context, userID int64) ([]scoringdomain.Unlock, error) {
	defs, err := s.defs.Find(ctx, &domain.Definition{Active: true})
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}

	var unlocks []scoringdomain.Unlock
	for pass := 0; pass < maxEvaluationPasses; pass++ {
		unlocked, err := s.unlockedIDs(ctx, userID)
		if err != nil {
			return nil, err
		}

		cascading := false
		for _, def := range defs {
			if _, done := unlocked[def.ID]; done {
				continue
			}

			met, err := s.satisfied(ctx, userID, def)
			if err != nil {
				return nil, err
			}
			if !met {
				continue
			}

			granted, err := s.unlock(ctx, userID, def)
			if err != nil {
				return nil, err
			}
			if !granted {
				continue
			}

			unlocks = append(unlocks, scoringdomain.Unlock{
				Code:        def.Code,
				Name:        def.Name,
				PointsBonus: def.PointsBonus,
			})
			if def.PointsBonus > 0 {
				cascading = true
			}
		}

		if !cascading {
			break
		}
	}

	return unlocks, nil
}

func (s *Service) unlockedIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	var rows []domain.UserAchievement
	err := s.db.WithContext(ctx).
		Select("achievement_id").
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	ids := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		ids[row.AchievementID] = struct{}{}
	}
	return ids, nil
}

func (s *Service) satisfied(ctx context.Context, userID int64, def *domain.Definition) (bool, error) {
	switch def.CriteriaType {
	case domain.CriteriaActivityCount:
		count, err := s.ledger.CountByActivity(ctx, userID, def.ActivityType)
		if err != nil {
			return false, err
		}
		return count >= def.Threshold, nil

	case domain.CriteriaScoreThreshold:
		agg, err := s.ledger.GetAggregate(ctx, userID, scoringdomain.ScopeGlobal, "")
		if err != nil {
			return false, err
		}
		return agg != nil && agg.TotalScore >= def.Threshold, nil

	case domain.CriteriaLevelThreshold:
		agg, err := s.ledger.GetAggregate(ctx, userID, scoringdomain.ScopeGlobal, "")
		if err != nil {
			return false, err
		}
		return agg != nil && int64(agg.Level) >= def.Threshold, nil

	case domain.CriteriaStreakDays:
		stamps, err := s.ledger.ActivityTimestamps(ctx, userID, def.ActivityType)
		if err != nil {
			return false, err
		}
		return int64(scoringdomain.ConsecutiveDays(stamps)) >= def.Threshold, nil

	case domain.CriteriaActivityVariety:
		count, err := s.ledger.DistinctActivityTypes(ctx, userID)
		if err != nil {
			return false, err
		}
		return count >= def.Threshold, nil

	default:
		return false, domain.ErrInvalidCriteria
	}
}

// unlock inserts the user achievement and applies its bonus. Returns
// false when another evaluation got there first; the unique index
// decides, not this code.
func (s *Service) unlock(ctx context.Context, userID int64, def *domain.Definition) (bool, error) {
	now := s.clock.Now()
	ua := &domain.UserAchievement{
		ID:            s.genID.Generate().Int64(),
		UserID:        userID,
		AchievementID: def.ID,
		AwardedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(ua).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}

	if def.PointsBonus > 0 {
		if err := s.applyBonus(ctx, userID, def); err != nil {
			// The unlock row is committed; the bonus append is itself
			// idempotent, so Reconcile can finish the job.
			s.log.Warn("achievement bonus not applied",
				zap.String("achievement", def.Code),
				zap.Error(err),
			)
		}
	}

	s.metrics.RecordAchievementUnlock(ctx, def.Code)
	s.log.Info("achievement unlocked",
		zap.String("user_id", snowflake.ID(userID).String()),
		zap.String("achievement", def.Code),
		zap.Int64("points_bonus", def.PointsBonus),
	)
	return true, nil
}

// applyBonus appends the bonus to the scoring ledger. The bonus
// event's reference is the achievement code, so the ledger's
// uniqueness constraint ensures each bonus lands once.
func (s *Service) applyBonus(ctx context.Context, userID int64, def *domain.Definition) error {
	now := s.clock.Now()
	ev := &scoringdomain.ScoreEvent{
		ID:             s.genID.Generate().Int64(),
		UserID:         userID,
		ActivityType:   scoringdomain.ActivityAchievementBonus,
		Points:         def.PointsBonus,
		ReferenceType:  bonusReferenceType,
		ReferenceID:    def.Code,
		IdempotencyKey: strings.Join([]string{scoringdomain.ActivityAchievementBonus.String(), bonusReferenceType, def.Code}, ":"),
		CreatedAt:      now,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txLedger := s.ledger.WithTx(tx)

		inserted, err := txLedger.Append(ctx, ev)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		total, err := txLedger.AddToAggregate(ctx, s.genID.Generate().Int64(), userID, scoringdomain.ScopeGlobal, "", def.PointsBonus, now)
		if err != nil {
			return err
		}
		level := scoringdomain.ComputeLevel(s.rules.Get().Levels, total)
		return txLedger.SetLevel(ctx, userID, scoringdomain.ScopeGlobal, "", level, now)
	})
}

func (s *Service) ListDefinitions(ctx context.Context) ([]domain.DefinitionResponse, error) {
	defs, err := s.defs.Find(ctx, &domain.Definition{Active: true})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.DefinitionResponse, 0, len(defs))
	for _, def := range defs {
		resp = append(resp, toDefinitionResponse(def))
	}
	return resp, nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64) (*domain.UserAchievementsResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	defs, err := s.defs.Find(ctx, &domain.Definition{Active: true})
	if err != nil {
		return nil, err
	}

	var rows []domain.UserAchievement
	err = s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("awarded_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*domain.Definition, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}

	resp := &domain.UserAchievementsResponse{
		Unlocked:  make([]domain.UnlockedResponse, 0, len(rows)),
		Remaining: make([]domain.DefinitionResponse, 0),
	}

	unlocked := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		unlocked[row.AchievementID] = struct{}{}
		def, ok := byID[row.AchievementID]
		if !ok {
			// Definition retired after the unlock; keep the trophy.
			continue
		}
		resp.Unlocked = append(resp.Unlocked, domain.UnlockedResponse{
			Code:      def.Code,
			Name:      def.Name,
			AwardedAt: row.AwardedAt,
		})
	}

	for _, def := range defs {
		if _, ok := unlocked[def.ID]; ok {
			continue
		}
		resp.Remaining = append(resp.Remaining, toDefinitionResponse(def))
	}

	return resp, nil
}

func toDefinitionResponse(def *domain.Definition) domain.DefinitionResponse {
	return domain.DefinitionResponse{
		Code:         def.Code,
		Name:         def.Name,
		Description:  def.Description,
		CriteriaType: def.CriteriaType,
		ActivityType: def.ActivityType,
		Threshold:    def.Threshold,
		PointsBonus:  def.PointsBonus,
	}
}
