// Package watchcmder provides the `spool watch` CLI command.
package watchcmder

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/cmd/spool/output"
	"github.com/spoolworks/spool/pkg/config"
	"github.com/spoolworks/spool/pkg/convert"
	"github.com/spoolworks/spool/pkg/convert/driver"
	"github.com/spoolworks/spool/pkg/logger"
	"github.com/spoolworks/spool/pkg/pricing"
)

const watchLongDesc string = `Watch a directory and convert transcripts as they change.

Producers append to their transcript files while a session runs; watch
debounces writes and re-converts a file once it has stayed quiet for the
configured interval. Re-conversion is idempotent, so repeated triggers
for the same content produce identical output.

Examples:
  spool watch ~/.claude/projects
  spool watch -s codex ~/.codex/sessions`

const watchShortDesc string = "Convert transcripts as they change on disk"

type watchCommander struct {
	source  string
	outDir  string
	pricing string

	v *viper.Viper

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatchCmd creates the watch cobra command.
func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{pending: make(map[string]*time.Timer)}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	fs := config.ConvertFlags()
	config.AddStringFlag(cmd, fs, config.FlagSource, &cmder.source)
	config.AddStringFlag(cmd, fs, config.FlagOutDir, &cmder.outDir)
	config.AddStringFlag(cmd, fs, config.FlagPricing, &cmder.pricing)

	return cmd
}

func (c *watchCommander) initConfig(cmd *cobra.Command) error {
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

func (c *watchCommander) run(ctx context.Context, cmd *cobra.Command, dir string) error {
	source, err := driver.ParseSource(c.v.GetString("convert.source"))
	if err != nil {
		return err
	}

	table, err := pricing.Load(c.v.GetString("convert.pricing_path"))
	if err != nil {
		return err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	log := logger.NewLogger(debug)
	defer func() { _ = log.Sync() }()

	opts := convert.Options{
		Pricing:       table,
		ClientVersion: c.v.GetString("client.version"),
		Logger:        log,
	}
	outDir := c.v.GetString("convert.out_dir")
	debounce := time.Duration(c.v.GetUint("watch.debounce_ms")) * time.Millisecond

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	log.Info("watching for transcripts", zap.String("dir", dir), zap.String("source", string(source)))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isTranscript(event.Name) {
				continue
			}
			c.schedule(event.Name, debounce, func(path string) {
				c.convertOne(source, path, outDir, opts, log)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}

// schedule debounces conversion of a path: each new event resets the
// timer so a file converts only once it has stayed quiet.
func (c *watchCommander) schedule(path string, debounce time.Duration, fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.pending[path]; ok {
		timer.Stop()
	}
	c.pending[path] = time.AfterFunc(debounce, func() {
		c.mu.Lock()
		delete(c.pending, path)
		c.mu.Unlock()
		fn(path)
	})
}

func (c *watchCommander) convertOne(source convert.Source, path, outDir string, opts convert.Options, log *zap.Logger) {
	result, err := driver.ConvertFile(source, path, opts)
	if err != nil {
		log.Warn("conversion failed", zap.String("file", path), zap.Error(err))
		return
	}
	if result == nil {
		log.Debug("no usable records", zap.String("file", path))
		return
	}

	written, err := output.Write(outDir, result)
	if err != nil {
		log.Warn("writing output failed", zap.String("file", path), zap.Error(err))
		return
	}
	log.Info("converted transcript",
		zap.String("file", path),
		zap.String("out", written),
		zap.Int("messages", result.Transcript.MessageCount))
}

func isTranscript(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jsonl" || ext == ".json"
}
