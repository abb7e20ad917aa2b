// Package git detects repository information for transcripts whose
// records carry no git context of their own.
package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spoolworks/spool/pkg/unified"
)

const commandTimeout = 5 * time.Second

// Detect builds a GitContext for dir by shelling out to git. Returns
// nil when dir is not inside a repository; the converter then falls
// back to whatever the records themselves carry.
func Detect(dir string) *unified.GitContext {
	top := gitOutput(dir, "rev-parse", "--show-toplevel")
	if top == "" {
		return nil
	}

	rel, err := filepath.Rel(top, dir)
	if err != nil || rel == "" {
		rel = "."
	}

	return &unified.GitContext{
		Dir:    rel,
		Branch: gitOutput(dir, "rev-parse", "--abbrev-ref", "HEAD"),
		Repo:   filepath.Base(top),
	}
}

// RepoName returns the name of the current git repository, falling back
// to the base name of the working directory outside a repo.
func RepoName() string {
	if top := gitOutput("", "rev-parse", "--show-toplevel"); top != "" {
		return filepath.Base(top)
	}

	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Base(wd)
}

func gitOutput(dir string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
