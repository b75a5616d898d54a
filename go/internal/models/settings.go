package models

import "time"

// Settings holds the user-tunable focus rules.
type Settings struct {
	TabSwitchPenalty      int           `yaml:"tab_switch_penalty" json:"tab_switch_penalty"`
	RewardPointsPerMinute int           `yaml:"reward_points_per_minute" json:"reward_points_per_minute"`
	DefaultFocusMinutes   int           `yaml:"default_focus_minutes" json:"default_focus_minutes"`
	PenaltyDebounce       time.Duration `yaml:"penalty_debounce" json:"penalty_debounce"`
}

// DefaultSettings returns the settings a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		TabSwitchPenalty:      5,
		RewardPointsPerMinute: 1,
		DefaultFocusMinutes:   25,
		PenaltyDebounce:       2 * time.Second,
	}
}
