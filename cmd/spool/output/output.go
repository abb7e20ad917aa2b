// Package output writes conversion results to disk: the unified
// transcript as pretty-printed JSON and each blob under its digest.
// Shared by the convert and watch commands.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spoolworks/spool/pkg/convert"
)

const blobsDir = "blobs"

// Write persists a conversion result under dir and returns the
// transcript's path.
func Write(dir string, result *convert.Result) (string, error) {
	if result == nil || result.Transcript == nil {
		return "", fmt.Errorf("nothing to write")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	data, err := json.MarshalIndent(result.Transcript, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding transcript: %w", err)
	}

	path := filepath.Join(dir, result.Transcript.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}

	if len(result.Blobs) > 0 {
		bdir := filepath.Join(dir, blobsDir)
		if err := os.MkdirAll(bdir, 0o755); err != nil {
			return "", fmt.Errorf("creating blobs dir: %w", err)
		}
		for digest, b := range result.Blobs {
			bpath := filepath.Join(bdir, digest)
			if _, err := os.Stat(bpath); err == nil {
				continue // content-addressed: same digest, same bytes
			}
			if err := os.WriteFile(bpath, b.Data, 0o644); err != nil {
				return "", fmt.Errorf("writing blob %s: %w", digest, err)
			}
		}
	}

	return path, nil
}
