// Package convert holds the machinery shared by every source-format
// converter: options and result envelopes, preview-text filtering, the
// command-envelope parser, path relativization, diff computation and
// usage/cost accumulation. The per-producer packages underneath
// (claudecode, codex, cline) own the record shapes and conversion
// loops.
package convert

import (
	"time"

	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/blob"
	"github.com/spoolworks/spool/pkg/pricing"
	"github.com/spoolworks/spool/pkg/unified"
)

// Source tags the producer a transcript came from.
type Source string

const (
	SourceClaudeCode Source = "claude-code"
	SourceCodex      Source = "codex"
	SourceCline      Source = "cline"
)

// Options carries injectable configuration for one conversion call.
// The zero value is usable: default pricing, wall-clock now, git
// context inferred from the records.
type Options struct {
	// Pricing maps model names to rates. Nil falls back to the
	// built-in table.
	Pricing pricing.Table

	// Now substitutes for the wall clock when no record timestamp is
	// derivable. Tests inject it for determinism.
	Now time.Time

	// Git bypasses record-based git inference when set.
	Git *unified.GitContext

	// CWD overrides the working directory recorded by the producer.
	CWD string

	// ClientVersion overrides the producer-reported client version.
	ClientVersion string

	// Logger receives skip-line diagnostics. Nil means silent.
	Logger *zap.Logger
}

// Table returns the effective pricing table.
func (o Options) Table() pricing.Table {
	if o.Pricing != nil {
		return o.Pricing
	}
	return pricing.Default()
}

// Clock returns the effective "now".
func (o Options) Clock() time.Time {
	if !o.Now.IsZero() {
		return o.Now
	}
	return time.Now().UTC()
}

// Log returns a usable logger.
func (o Options) Log() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// Result is one conversion's output. The caller owns the blob map once
// the call returns; the engine never persists anything itself. A nil
// Result with a nil error means the input had no usable records.
type Result struct {
	Transcript *unified.Transcript
	Blobs      map[string]blob.Blob
}
