package service

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/checkin/domain"
	"github.com/fanpulse/fanpulse/internal/clock"
	eventdomain "github.com/fanpulse/fanpulse/internal/event/domain"
	"github.com/fanpulse/fanpulse/internal/observability/metrics"
	"github.com/fanpulse/fanpulse/internal/ratelimit"
	"github.com/fanpulse/fanpulse/internal/replay"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/internal/token"
	"github.com/fanpulse/fanpulse/pkg/db"
)

const nodeReferenceType = "node"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Verifier *token.Verifier
	Guard    *replay.Guard
	Events   eventdomain.Service
	Scoring  scoringdomain.Service
	Limiter  *ratelimit.ScanLimiter `optional:"true"`
	Metrics  *metrics.Metrics       `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	verifier *token.Verifier
	guard    *replay.Guard
	events   eventdomain.Service
	scoring  scoringdomain.Service
	limiter  *ratelimit.ScanLimiter
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("checkin.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		verifier: p.Verifier,
		guard:    p.Guard,
		events:   p.Events,
		scoring:  p.Scoring,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
	}
}

func (s *Service) Validate(ctx context.Context, req domain.ValidateRequest) (*domain.ValidationResult, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	if s.limiter.Enabled() {
		verdict, err := s.limiter.AllowUser(ctx, req.UserID)
		if err != nil {
			// Redis trouble must not block the gates.
			s.log.Warn("scan limiter unavailable", zap.Error(err))
		} else if !verdict.Allowed {
			s.metrics.RecordRateLimitDenied(ctx, "checkins")
			return nil, domain.ErrRateLimited
		}
	}

	tok, err := token.Parse(strings.TrimSpace(req.Token))
	if err != nil {
		return s.reject(ctx, req.UserID, domain.CodeInvalidFormat, err), nil
	}

	result := &domain.ValidationResult{
		EventCode:  tok.EventID,
		ChapterID:  tok.ChapterID,
		SequenceID: tok.SequenceID,
	}

	if err := s.verifier.Verify(strings.TrimSpace(req.Token), tok); err != nil {
		code := domain.CodeSignatureFault
		if errors.Is(err, token.ErrChecksumMismatch) {
			code = domain.CodeChecksumFault
		}
		s.rejectInto(ctx, req.UserID, result, code, err)
		return result, nil
	}

	if err := s.guard.Check(ctx, tok); err != nil {
		if errors.Is(err, replay.ErrStaleTimestamp) || errors.Is(err, replay.ErrNonceReplayed) {
			s.metrics.RecordReplayRejection(ctx, replayReason(err))
			s.rejectInto(ctx, req.UserID, result, domain.CodeReplayDetected, err)
			return result, nil
		}
		// Backend failure of the replay store, not a replayed token.
		return nil, err
	}

	ev, err := s.events.ValidateScan(ctx, tok.EventID, req.ExpectedEventID)
	if err != nil {
		if errors.Is(err, eventdomain.ErrNotFound) ||
			errors.Is(err, eventdomain.ErrEventInactive) ||
			errors.Is(err, eventdomain.ErrEventMismatch) ||
			errors.Is(err, eventdomain.ErrInvalidCode) {
			s.rejectInto(ctx, req.UserID, result, domain.CodeEventInvalid, err)
			return result, nil
		}
		return nil, err
	}

	record := &domain.CollectionRecord{
		ID:          s.genID.Generate().Int64(),
		UserID:      req.UserID,
		NodeKey:     tok.NodeKey(),
		EventCode:   ev.Code,
		ChapterID:   tok.ChapterID,
		SequenceID:  tok.SequenceID,
		CollectedAt: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			result.AlreadyCollected = true
		} else {
			return nil, err
		}
	}

	// Award even on a re-scan: the scoring ledger is idempotent, so
	// this settles a collection whose original award never landed.
	award, err := s.scoring.Award(ctx, scoringdomain.AwardRequest{
		UserID:        req.UserID,
		ActivityType:  scoringdomain.ActivityCheckin.String(),
		ReferenceType: nodeReferenceType,
		ReferenceID:   tok.NodeKey(),
		EventID:       ev.Code,
		ChapterID:     tok.ChapterID,
		Phase:         ev.Phase,
	})
	if err != nil {
		return nil, err
	}

	result.Valid = true
	result.PointsAwarded = award.PointsAwarded
	result.TotalScore = award.TotalScore
	result.Level = award.Level
	result.NewAchievements = award.NewAchievements

	s.metrics.RecordTokenValidation(ctx, "valid")
	s.log.Info("token validated",
		zap.String("user_id", snowflake.ID(req.UserID).String()),
		zap.String("node_key", tok.NodeKey()),
		zap.Bool("already_collected", result.AlreadyCollected),
		zap.Int64("points_awarded", result.PointsAwarded),
	)

	return result, nil
}

func (s *Service) Mint(ctx context.Context, req domain.MintRequest) (*domain.MintResponse, error) {
	eventCode := strings.TrimSpace(req.EventCode)
	chapterID := strings.TrimSpace(req.ChapterID)
	sequenceID := strings.TrimSpace(req.SequenceID)
	if eventCode == "" || chapterID == "" || sequenceID == "" {
		return nil, domain.ErrInvalidInput
	}

	// Only mint for events that exist; a token for a phantom event
	// would fail every scan anyway.
	if _, err := s.events.GetByCode(ctx, eventCode); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tok := &token.Token{
		EventID:    eventCode,
		ChapterID:  chapterID,
		SequenceID: sequenceID,
		Version:    "1",
		Timestamp:  now.UnixMilli(),
		Nonce:      ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
	}

	return &domain.MintResponse{Token: s.verifier.Issue(tok, req.WithChecksum)}, nil
}

// reject logs and counts a failed scan. Integrity failures carry the
// acting user for audit.
func (s *Service) reject(ctx context.Context, userID int64, code string, cause error) *domain.ValidationResult {
	result := &domain.ValidationResult{}
	s.rejectInto(ctx, userID, result, code, cause)
	return result
}

func (s *Service) rejectInto(ctx context.Context, userID int64, result *domain.ValidationResult, code string, cause error) {
	result.Valid = false
	result.Code = code

	s.metrics.RecordTokenValidation(ctx, strings.ToLower(code))
	s.log.Warn("token rejected",
		zap.String("user_id", snowflake.ID(userID).String()),
		zap.String("code", code),
		zap.Error(cause),
	)
}

func replayReason(err error) string {
	if errors.Is(err, replay.ErrStaleTimestamp) {
		return "stale_timestamp"
	}
	return "nonce_replayed"
}
