// Package spoolcmder
package spoolcmder

import (
	"github.com/spf13/cobra"

	convertcmder "github.com/spoolworks/spool/cmd/spool/convert"
	versioncmder "github.com/spoolworks/spool/cmd/spool/version"
	watchcmder "github.com/spoolworks/spool/cmd/spool/watch"
)

const spoolLongDesc string = `Spool normalizes coding-agent session transcripts.

Convert transcripts using:
  spool convert session.jsonl             Convert a Claude Code transcript
  spool convert -s codex rollout.jsonl    Convert a Codex rollout
  spool watch ~/.claude/projects          Convert transcripts as they appear`

const spoolShortDesc string = "Spool - Unified agent transcripts"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: spoolShortDesc,
		Long:  spoolLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .spool/ config directory")

	// Add subcommands
	cmd.AddCommand(convertcmder.NewConvertCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
