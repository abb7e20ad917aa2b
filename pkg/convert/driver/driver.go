// Package driver dispatches a conversion to the right source-format
// converter. It exists so the CLI commands share one entry point
// without the shared convert package importing its own subpackages.
package driver

import (
	"fmt"
	"strings"

	"github.com/spoolworks/spool/pkg/convert"
	"github.com/spoolworks/spool/pkg/convert/claudecode"
	"github.com/spoolworks/spool/pkg/convert/cline"
	"github.com/spoolworks/spool/pkg/convert/codex"
)

// Sources lists the supported source tags.
func Sources() []string {
	return []string{
		string(convert.SourceClaudeCode),
		string(convert.SourceCodex),
		string(convert.SourceCline),
	}
}

// ParseSource validates a source tag from user input.
func ParseSource(s string) (convert.Source, error) {
	switch convert.Source(strings.ToLower(strings.TrimSpace(s))) {
	case convert.SourceClaudeCode:
		return convert.SourceClaudeCode, nil
	case convert.SourceCodex:
		return convert.SourceCodex, nil
	case convert.SourceCline:
		return convert.SourceCline, nil
	default:
		return "", fmt.Errorf("unknown source %q (expected one of %s)", s, strings.Join(Sources(), ", "))
	}
}

// ConvertFile converts one transcript file. Each call is fully
// isolated; callers may convert many files in parallel.
func ConvertFile(source convert.Source, path string, opts convert.Options) (*convert.Result, error) {
	switch source {
	case convert.SourceClaudeCode:
		return claudecode.ConvertFile(path, opts)
	case convert.SourceCodex:
		return codex.ConvertFile(path, opts)
	case convert.SourceCline:
		return cline.ConvertFile(path, opts)
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}
