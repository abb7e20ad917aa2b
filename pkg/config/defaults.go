package config

const (
	defaultSource     = "claude-code"
	defaultOutDir     = "./spool-out"
	defaultDebounceMS = 500
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Convert: ConvertConfig{
			Source: defaultSource,
			OutDir: defaultOutDir,
		},
		Watch: WatchConfig{
			DebounceMS: defaultDebounceMS,
		},
	}
}
