package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag. Commands reference
// flags by registry key rather than hard-coding names, shorthands,
// defaults, and descriptions inline, which prevents drift when the same
// logical flag appears on multiple commands (e.g. --pricing on both
// "spool convert" and "spool watch").
type Flag struct {
	// Name is the long flag name (e.g. "source").
	Name string

	// Shorthand is the one-letter short flag. Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to.
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of registry keys to Flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagSource  = "source"
	FlagOutDir  = "out"
	FlagPricing = "pricing"
)

// ConvertFlags covers the flags shared by convert and watch.
func ConvertFlags() FlagSet {
	return FlagSet{
		FlagSource: {
			Name:        "source",
			Shorthand:   "s",
			ViperKey:    "convert.source",
			Description: "Producer format: claude-code, codex or cline",
		},
		FlagOutDir: {
			Name:        "out",
			Shorthand:   "o",
			ViperKey:    "convert.out_dir",
			Description: "Directory for unified transcripts and blobs",
		},
		FlagPricing: {
			Name:        "pricing",
			ViperKey:    "convert.pricing_path",
			Description: "TOML pricing-override file",
		},
	}
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using
// definitions from the given FlagSet. Call in PreRunE after InitViper
// to connect flags to the precedence chain (flag > env > file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default value for a viper key from
// NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}
