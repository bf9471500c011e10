package domain

import (
	"errors"
	"strings"
)

// ActivityType is the closed set of point-awarding activities. New
// producers must extend the enum here rather than invent strings.
type ActivityType string

const (
	ActivityCheckin          ActivityType = "checkin"
	ActivityCardComplete     ActivityType = "card_complete"
	ActivityChapterComplete  ActivityType = "chapter_complete"
	ActivityQuizCorrect      ActivityType = "quiz_correct"
	ActivityQuizComplete     ActivityType = "quiz_complete"
	ActivityPollVote         ActivityType = "poll_vote"
	ActivityDailyVisit       ActivityType = "daily_visit"
	ActivityAchievementBonus ActivityType = "achievement_bonus"
)

var ErrUnknownActivityType = errors.New("unknown_activity_type")

var activityTypes = map[ActivityType]struct{}{
	ActivityCheckin:          {},
	ActivityCardComplete:     {},
	ActivityChapterComplete:  {},
	ActivityQuizCorrect:      {},
	ActivityQuizComplete:     {},
	ActivityPollVote:         {},
	ActivityDailyVisit:       {},
	ActivityAchievementBonus: {},
}

// legacyActivityNames maps names emitted by older clients onto the
// closed enum.
var legacyActivityNames = map[string]ActivityType{
	"scan":             ActivityCheckin,
	"card":             ActivityCardComplete,
	"chapter":          ActivityChapterComplete,
	"quiz_answer":      ActivityQuizCorrect,
	"quiz_finished":    ActivityQuizComplete,
	"vote":             ActivityPollVote,
	"visit":            ActivityDailyVisit,
	"achievement":      ActivityAchievementBonus,
	"badge_bonus":      ActivityAchievementBonus,
	"chapter_finished": ActivityChapterComplete,
}

// ParseActivityType resolves raw to a member of the closed set,
// accepting legacy names.
func ParseActivityType(raw string) (ActivityType, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if at := ActivityType(name); at.Valid() {
		return at, nil
	}
	if at, ok := legacyActivityNames[name]; ok {
		return at, nil
	}
	return "", ErrUnknownActivityType
}

func (at ActivityType) Valid() bool {
	_, ok := activityTypes[at]
	return ok
}

func (at ActivityType) String() string { return string(at) }
