// Package convertcmder provides the `spool convert` CLI command.
package convertcmder

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spoolworks/spool/cmd/spool/output"
	"github.com/spoolworks/spool/pkg/config"
	"github.com/spoolworks/spool/pkg/convert"
	"github.com/spoolworks/spool/pkg/convert/driver"
	"github.com/spoolworks/spool/pkg/git"
	"github.com/spoolworks/spool/pkg/logger"
	"github.com/spoolworks/spool/pkg/pricing"
	"github.com/spoolworks/spool/pkg/unified"
	"github.com/spoolworks/spool/pkg/utils"
)

const convertLongDesc string = `Convert agent session transcripts to the unified format.

Reads one or more transcript files (Claude Code JSONL, Codex rollout
JSONL, or Cline ui_messages JSON), normalizes each into a unified
transcript document, and writes the document plus any extracted image
blobs to the output directory. Each file converts independently.

Examples:
  spool convert session.jsonl
  spool convert -s codex -o ./out rollout-*.jsonl
  spool convert --pricing pricing.toml --now 2026-01-02T15:04:05Z session.jsonl`

const convertShortDesc string = "Convert agent transcripts to the unified format"

var (
	summaryLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	summaryValue = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	summaryTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

type convertCommander struct {
	source  string
	outDir  string
	pricing string
	cwd     string
	now     string

	v *viper.Viper
}

// NewConvertCmd creates the convert cobra command.
func NewConvertCmd() *cobra.Command {
	cmder := &convertCommander{}

	cmd := &cobra.Command{
		Use:   "convert [files...]",
		Short: convertShortDesc,
		Long:  convertLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	fs := config.ConvertFlags()
	config.AddStringFlag(cmd, fs, config.FlagSource, &cmder.source)
	config.AddStringFlag(cmd, fs, config.FlagOutDir, &cmder.outDir)
	config.AddStringFlag(cmd, fs, config.FlagPricing, &cmder.pricing)
	cmd.Flags().StringVar(&cmder.cwd, "cwd", "", "Override the session working directory")
	cmd.Flags().StringVar(&cmder.now, "now", "", "Fixed RFC3339 timestamp for records without one")

	return cmd
}

func (c *convertCommander) initConfig(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return err
	}
	fs := config.ConvertFlags()
	config.BindRegisteredFlags(v, cmd, fs, []string{config.FlagSource, config.FlagOutDir, config.FlagPricing})
	c.v = v
	return nil
}

// Options assembles the conversion options from flags, env and config.
func (c *convertCommander) Options(cmd *cobra.Command) (convert.Options, error) {
	table, err := pricing.Load(c.v.GetString("convert.pricing_path"))
	if err != nil {
		return convert.Options{}, err
	}

	opts := convert.Options{
		Pricing:       table,
		CWD:           c.cwd,
		ClientVersion: c.v.GetString("client.version"),
	}

	// An explicit working directory is authoritative: detect its git
	// context directly instead of trusting whatever the records say.
	if c.cwd != "" {
		opts.Git = git.Detect(c.cwd)
	}

	if c.now != "" {
		now, err := time.Parse(time.RFC3339, c.now)
		if err != nil {
			return convert.Options{}, fmt.Errorf("parsing --now: %w", err)
		}
		opts.Now = now
	}

	debug, _ := cmd.Flags().GetBool("debug")
	opts.Logger = logger.NewLogger(debug)

	return opts, nil
}

func (c *convertCommander) run(cmd *cobra.Command, args []string) error {
	source, err := driver.ParseSource(c.v.GetString("convert.source"))
	if err != nil {
		return err
	}

	opts, err := c.Options(cmd)
	if err != nil {
		return err
	}

	outDir := c.v.GetString("convert.out_dir")
	clog := charmlog.New(cmd.ErrOrStderr())

	// Files convert independently: no blob set, counter or dedup state
	// carries over between them.
	for _, file := range args {
		result, err := driver.ConvertFile(source, file, opts)
		if err != nil {
			return fmt.Errorf("converting %s: %w", file, err)
		}
		if result == nil {
			clog.Warn("no usable records, skipping", "file", file)
			continue
		}

		path, err := output.Write(outDir, result)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(result.Transcript, path, len(result.Blobs)))
	}
	return nil
}

func renderSummary(t *unified.Transcript, path string, blobs int) string {
	row := func(label string, value any) string {
		return summaryLabel.Render(fmt.Sprintf("%-10s", label)) + summaryValue.Render(fmt.Sprintf("%v", value))
	}

	lines := []string{
		summaryTitle.Render(t.ID) + summaryValue.Render(" → "+path),
	}
	if t.Preview != nil {
		firstLine, _, _ := strings.Cut(*t.Preview, "\n")
		lines = append(lines, row("preview", utils.Truncate(firstLine, 72)))
	}
	lines = append(lines,
		row("messages", t.MessageCount),
		row("tools", t.ToolCount),
		row("tokens", t.TokenUsage.Total),
		row("blended", t.BlendedTokens),
		row("cost", fmt.Sprintf("$%.4f", t.CostUSD)),
	)
	if blobs > 0 {
		lines = append(lines, row("blobs", blobs))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
