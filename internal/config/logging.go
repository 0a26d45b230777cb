package config

// LoggingConfig controls the per-workspace log files.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level,omitempty"`
	Format    string `yaml:"format" json:"format,omitempty"`
	DebugMode bool   `yaml:"debug_mode" json:"debug_mode,omitempty"`
	// Categories switches individual log files off, keyed by category name
	// (boot, session, auth, storage, api, ui).
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"`
}

// IsCategoryEnabled reports whether a category writes to its log file.
// Nothing is logged unless debug_mode is set; categories missing from the
// map are on.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	enabled, ok := c.Categories[category]
	return !ok || enabled
}
