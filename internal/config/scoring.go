package config

import (
	"errors"
	"log"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ScoringConfig carries the tunable scoring rules: point values per activity,
// per-day caps, and the level threshold table.
type ScoringConfig struct {
	Points    map[string]int64 `mapstructure:"points"`
	DailyCaps map[string]int64 `mapstructure:"dailyCaps"`
	// Levels holds the minimum total score for each level, starting at
	// level 1. It must be strictly increasing; the top level is open-ended.
	Levels []int64 `mapstructure:"levels"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Points: map[string]int64{
			"checkin":          25,
			"card_complete":    15,
			"chapter_complete": 50,
			"quiz_correct":     10,
			"quiz_complete":    20,
			"poll_vote":        5,
			"daily_visit":      5,
		},
		DailyCaps: map[string]int64{
			"daily_visit": 1,
			"poll_vote":   20,
		},
		Levels: []int64{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 11000},
	}
}

// ScoringConfigHolder serves the current scoring rules and hot-reloads them
// when the underlying file changes.
type ScoringConfigHolder struct {
	current atomic.Value // holds ScoringConfig
}

func NewScoringConfigHolder() (*ScoringConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("fanpulse")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/fanpulse/config")
	v.AddConfigPath("/etc/fanpulse")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FANPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultScoringConfig()
	v.SetDefault("scoring.points", defaults.Points)
	v.SetDefault("scoring.dailyCaps", defaults.DailyCaps)
	v.SetDefault("scoring.levels", defaults.Levels)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	var cfg ScoringConfig
	if err := v.UnmarshalKey("scoring", &cfg); err != nil {
		return nil, err
	}
	fillScoringDefaults(&cfg, defaults)
	if err := validateScoringConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ScoringConfigHolder{}
	holder.current.Store(cfg)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ScoringConfig
			if err := v.UnmarshalKey("scoring", &updated); err != nil {
				log.Printf("[scoring-config] reload failed: %v", err)
				return
			}
			fillScoringDefaults(&updated, defaults)
			if err := validateScoringConfig(updated); err != nil {
				log.Printf("[scoring-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[scoring-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *ScoringConfigHolder) Get() ScoringConfig {
	return h.current.Load().(ScoringConfig)
}

// NewStaticScoringConfigHolder wraps a fixed config, for tests.
func NewStaticScoringConfigHolder(cfg ScoringConfig) *ScoringConfigHolder {
	holder := &ScoringConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func fillScoringDefaults(cfg *ScoringConfig, defaults ScoringConfig) {
	if len(cfg.Points) == 0 {
		cfg.Points = defaults.Points
	}
	if cfg.DailyCaps == nil {
		cfg.DailyCaps = defaults.DailyCaps
	}
	if len(cfg.Levels) == 0 {
		cfg.Levels = defaults.Levels
	}
}

func validateScoringConfig(cfg ScoringConfig) error {
	if len(cfg.Points) == 0 {
		return errors.New("scoring.points cannot be empty")
	}
	for activity, pts := range cfg.Points {
		if pts < 0 {
			return errors.New("scoring.points." + activity + " cannot be negative")
		}
	}
	if len(cfg.Levels) == 0 {
		return errors.New("scoring.levels cannot be empty")
	}
	if cfg.Levels[0] != 0 {
		return errors.New("scoring.levels must start at 0")
	}
	if !sort.SliceIsSorted(cfg.Levels, func(i, j int) bool { return cfg.Levels[i] < cfg.Levels[j] }) {
		return errors.New("scoring.levels must be strictly increasing")
	}
	for i := 1; i < len(cfg.Levels); i++ {
		if cfg.Levels[i] == cfg.Levels[i-1] {
			return errors.New("scoring.levels must be strictly increasing")
		}
	}
	return nil
}
