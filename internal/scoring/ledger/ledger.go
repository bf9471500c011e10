package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/pkg/db"
)

// Ledger is the storage layer shared by the scoring service and the
// achievement evaluator: appends to the score_events table and atomic
// maintenance of the derived aggregates. Idempotency lives here, in
// the unique indexes, not in application locks.
type Ledger struct {
	db *gorm.DB
}

func New(gdb *gorm.DB) *Ledger {
	return &Ledger{db: gdb}
}

// WithTx returns a Ledger bound to tx so a service can run several
// calls in one transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// Append inserts ev. It returns false when either uniqueness
// constraint already holds, which is the "already awarded" outcome;
// exactly one of any set of concurrent identical writers sees true.
func (l *Ledger) Append(ctx context.Context, ev *domain.ScoreEvent) (bool, error) {
	err := l.db.WithContext(ctx).Create(ev).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *Ledger) FindByReference(ctx context.Context, userID int64, at domain.ActivityType, refType, refID string) (*domain.ScoreEvent, error) {
	var ev domain.ScoreEvent
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND activity_type = ? AND reference_type = ? AND reference_id = ?",
			userID, at, refType, refID).
		First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

// AddToAggregate adds points to one scope row with an atomic SQL
// increment, creating the row on first touch, and returns the new
// total. Two concurrent increments both land; there is no
// read-modify-write window.
func (l *Ledger) AddToAggregate(ctx context.Context, id int64, userID int64, scope domain.ScopeType, scopeID string, points int64, now time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Model(&domain.UserScoreAggregate{}).
		Where("user_id = ? AND scope_type = ? AND scope_id = ?", userID, scope, scopeID).
		UpdateColumns(map[string]any{
			"total_score": gorm.Expr("total_score + ?", points),
			"updated_at":  now,
		})
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		agg := &domain.UserScoreAggregate{
			ID:         id,
			UserID:     userID,
			ScopeType:  scope,
			ScopeID:    scopeID,
			TotalScore: points,
			Level:      1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		createRes := l.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(agg)
		if createRes.Error != nil && !db.IsDuplicateKeyErr(createRes.Error) {
			return 0, createRes.Error
		}
		if createRes.Error != nil || createRes.RowsAffected == 0 {
			// Lost the insert race; the row exists now, retry the
			// increment.
			res = l.db.WithContext(ctx).
				Model(&domain.UserScoreAggregate{}).
				Where("user_id = ? AND scope_type = ? AND scope_id = ?", userID, scope, scopeID).
				UpdateColumns(map[string]any{
					"total_score": gorm.Expr("total_score + ?", points),
					"updated_at":  now,
				})
			if res.Error != nil {
				return 0, res.Error
			}
		}
	}

	agg, err := l.GetAggregate(ctx, userID, scope, scopeID)
	if err != nil {
		return 0, err
	}
	if agg == nil {
		return points, nil
	}
	return agg.TotalScore, nil
}

// SetLevel records the level derived from a scope's new total.
func (l *Ledger) SetLevel(ctx context.Context, userID int64, scope domain.ScopeType, scopeID string, level int, now time.Time) error {
	return l.db.WithContext(ctx).
		Model(&domain.UserScoreAggregate{}).
		Where("user_id = ? AND scope_type = ? AND scope_id = ?", userID, scope, scopeID).
		UpdateColumns(map[string]any{
			"level":      level,
			"updated_at": now,
		}).Error
}

func (l *Ledger) GetAggregate(ctx context.Context, userID int64, scope domain.ScopeType, scopeID string) (*domain.UserScoreAggregate, error) {
	var agg domain.UserScoreAggregate
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND scope_type = ? AND scope_id = ?", userID, scope, scopeID).
		First(&agg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agg, nil
}

// CountByActivity counts the user's ledger entries of one activity
// type. Achievement activity-count criteria read this.
func (l *Ledger) CountByActivity(ctx context.Context, userID int64, at domain.ActivityType) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&domain.ScoreEvent{}).
		Where("user_id = ? AND activity_type = ?", userID, at).
		Count(&count).Error
	return count, err
}

// CountOnDay counts entries of one activity type within the UTC
// calendar day containing now. Daily caps read this.
func (l *Ledger) CountOnDay(ctx context.Context, userID int64, at domain.ActivityType, now time.Time) (int64, error) {
	day := now.UTC().Truncate(24 * time.Hour)
	var count int64
	err := l.db.WithContext(ctx).
		Model(&domain.ScoreEvent{}).
		Where("user_id = ? AND activity_type = ? AND created_at >= ? AND created_at < ?",
			userID, at, day, day.AddDate(0, 0, 1)).
		Count(&count).Error
	return count, err
}

// DistinctActivityTypes counts how many different activities the user
// has on the ledger, excluding bonus entries which are not activities
// the user performed.
func (l *Ledger) DistinctActivityTypes(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&domain.ScoreEvent{}).
		Where("user_id = ? AND activity_type <> ?", userID, domain.ActivityAchievementBonus).
		Distinct("activity_type").
		Count(&count).Error
	return count, err
}

// ActivityTimestamps returns the created_at stamps of the user's
// entries for one activity type, newest first. Streaks are derived
// from these.
func (l *Ledger) ActivityTimestamps(ctx context.Context, userID int64, at domain.ActivityType) ([]time.Time, error) {
	var events []domain.ScoreEvent
	err := l.db.WithContext(ctx).
		Select("created_at").
		Where("user_id = ? AND activity_type = ?", userID, at).
		Order("created_at DESC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	stamps := make([]time.Time, 0, len(events))
	for _, ev := range events {
		stamps = append(stamps, ev.CreatedAt)
	}
	return stamps, nil
}
