package config

// Config represents the persistent spool configuration stored as
// config.toml in the .spool/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Convert ConvertConfig `toml:"convert"`
	Client  ClientConfig  `toml:"client"`
	Watch   WatchConfig   `toml:"watch"`
}

// ConvertConfig holds defaults for the convert command.
type ConvertConfig struct {
	// Source is the default producer format when --source is not given.
	Source string `toml:"source,omitempty"`

	// OutDir is where unified transcripts and blobs are written.
	OutDir string `toml:"out_dir,omitempty"`

	// PricingPath points at a TOML pricing-override file. Empty means
	// the built-in table.
	PricingPath string `toml:"pricing_path,omitempty"`
}

// ClientConfig holds overrides applied to every conversion.
type ClientConfig struct {
	// Version overrides the producer-reported client version on the
	// emitted transcripts.
	Version string `toml:"version,omitempty"`
}

// WatchConfig holds settings for the watch command.
type WatchConfig struct {
	// DebounceMS is how long a file must stay quiet before it is
	// (re-)converted.
	DebounceMS uint `toml:"debounce_ms,omitempty"`
}
