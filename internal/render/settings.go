package render

import "natrender/internal/config"

// Settings selects the dispatch policy. They can change at runtime; each
// submission reads them once.
type Settings struct {
	// SeparateProcess renders each item in a child process.
	SeparateProcess bool `json:"separate_process"`
	// Queuing holds new batches back while a render is active.
	Queuing bool `json:"queuing"`
	// Background marks a headless process; every submission blocks.
	Background bool `json:"background"`
	// MaxParallel bounds the blocking worker pool.
	MaxParallel int `json:"max_parallel"`
}

// SettingsFromConfig derives dispatcher settings from configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{Queuing: true, MaxParallel: 1}
	}
	return Settings{
		SeparateProcess: cfg.Render.SeparateProcess,
		Queuing:         cfg.Render.Queuing,
		MaxParallel:     cfg.Render.MaxParallel,
	}
}

func (s Settings) poolSize(groups int) int {
	if s.MaxParallel > 0 && s.MaxParallel < groups {
		return s.MaxParallel
	}
	if groups < 1 {
		return 1
	}
	return groups
}
