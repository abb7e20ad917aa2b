package convert

import (
	"fmt"
	"strconv"
	"strings"
)

// Hunk mirrors the structured patch shape producers attach to file-edit
// results: 1-based start lines, counts, and prefixed (" ", "-", "+")
// content lines.
type Hunk struct {
	OldStart int      `json:"oldStart"`
	OldLines int      `json:"oldLines"`
	NewStart int      `json:"newStart"`
	NewLines int      `json:"newLines"`
	Lines    []string `json:"lines"`
}

// lcsSizeLimit caps the dynamic-programming table; beyond it the diff
// degrades to a full replace rather than blowing up memory.
const lcsSizeLimit = 4_000_000

// UnifiedDiff computes a minimal unified diff between two text blocks.
// The output is a single hunk spanning the first through last changed
// line, which is compact enough for the edit shapes this engine sees.
func UnifiedDiff(oldText, newText string) string {
	if oldText == newText {
		return ""
	}

	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	var body []string
	if len(oldLines)*len(newLines) > lcsSizeLimit {
		for _, line := range oldLines {
			body = append(body, "-"+line)
		}
		for _, line := range newLines {
			body = append(body, "+"+line)
		}
	} else {
		body = lcsDiff(oldLines, newLines)
	}

	// Trim unchanged lines off both ends; what remains is the hunk.
	start := 0
	for start < len(body) && strings.HasPrefix(body[start], " ") {
		start++
	}
	end := len(body)
	for end > start && strings.HasPrefix(body[end-1], " ") {
		end--
	}
	body = body[start:end]
	if len(body) == 0 {
		return ""
	}

	oldCount, newCount := 0, 0
	for _, line := range body {
		switch {
		case strings.HasPrefix(line, "-"):
			oldCount++
		case strings.HasPrefix(line, "+"):
			newCount++
		default:
			oldCount++
			newCount++
		}
	}

	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", start+1, oldCount, start+1, newCount)
	return header + "\n" + strings.Join(body, "\n")
}

// DiffFromHunks renders a structured patch as a unified diff string.
func DiffFromHunks(hunks []Hunk) string {
	var sb strings.Builder
	for i, h := range hunks {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
		for _, line := range h.Lines {
			sb.WriteString("\n")
			sb.WriteString(line)
		}
	}
	return sb.String()
}

// StartLineFromHunks returns the 1-based line offset an edit begins at.
func StartLineFromHunks(hunks []Hunk) int {
	if len(hunks) == 0 {
		return 0
	}
	return hunks[0].OldStart
}

// StartLineFromCatN extracts the first line number from "cat -n"-style
// numbered output ("   12\ttext" or "12→text").
func StartLineFromCatN(content string) int {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		i := 0
		for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
			i++
		}
		if i == 0 {
			continue
		}
		rest := trimmed[i:]
		if strings.HasPrefix(rest, "\t") || strings.HasPrefix(rest, "→") {
			n, err := strconv.Atoi(trimmed[:i])
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// DiffStats counts added and removed lines in a unified diff.
func DiffStats(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// lcsDiff walks a longest-common-subsequence table to produce prefixed
// diff lines over the whole inputs.
func lcsDiff(oldLines, newLines []string) []string {
	n, m := len(oldLines), len(newLines)
	table := make([][]int, n+1)
	for i := range table {
		table[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				table[i][j] = table[i+1][j+1] + 1
			} else {
				table[i][j] = max(table[i+1][j], table[i][j+1])
			}
		}
	}

	var out []string
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case oldLines[i] == newLines[j]:
			out = append(out, " "+oldLines[i])
			i++
			j++
		case table[i+1][j] >= table[i][j+1]:
			out = append(out, "-"+oldLines[i])
			i++
		default:
			out = append(out, "+"+newLines[j])
			j++
		}
	}
	for ; i < n; i++ {
		out = append(out, "-"+oldLines[i])
	}
	for ; j < m; j++ {
		out = append(out, "+"+newLines[j])
	}
	return out
}
