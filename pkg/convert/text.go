package convert

import "strings"

// MaxPreviewLines bounds how many meaningful lines make it into a
// transcript preview.
const MaxPreviewLines = 5

// statusOnly lines carry producer state, not conversation.
var statusOnly = []string{
	"[request interrupted by user]",
	"[request interrupted by user for tool use]",
	"api error",
	"no response requested.",
}

// nonPromptPrefixes mark lines that look like pasted command output or
// tool noise. A line matching one of these is still kept when it also
// carries a prompt cue; producers interleave genuine intent with pasted
// output inside the same message.
var nonPromptPrefixes = []string{
	"npm ", "npx ", "yarn ", "pnpm ", "pip ", "cargo ", "git ",
	"go ", "make ", "docker ", "error:", "warning:", "fatal:",
	"traceback", "at ", "#", "$", ">", "%",
}

// imperativeVerbs is the fixed vocabulary of leading verbs that mark a
// line as an instruction rather than output.
var imperativeVerbs = map[string]struct{}{
	"add": {}, "build": {}, "change": {}, "check": {}, "create": {},
	"debug": {}, "delete": {}, "explain": {}, "find": {}, "fix": {},
	"help": {}, "implement": {}, "improve": {}, "investigate": {},
	"look": {}, "make": {}, "refactor": {}, "remove": {}, "rename": {},
	"review": {}, "run": {}, "show": {}, "test": {}, "update": {},
	"use": {}, "write": {},
}

// conversationalLeadIns are lead phrases that mark genuine user intent.
var conversationalLeadIns = []string{
	"can you", "could you", "please", "would you", "let's", "lets ",
	"i want", "i need", "i'd like", "why ", "how ", "what ", "where ",
	"when ", "should ",
}

// MeaningfulLines filters a raw text block down to at most max lines of
// conversational content: blanks, status strings, envelope tags and
// shell-prompt-looking lines are dropped, with the prompt-cue escape
// hatch described on KeepLine.
func MeaningfulLines(raw string, max int) []string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !KeepLine(line) {
			continue
		}
		kept = append(kept, line)
		if len(kept) >= max {
			break
		}
	}
	return kept
}

// PreviewText joins the meaningful lines of a raw block into one
// preview string. Empty when nothing survives the filter.
func PreviewText(raw string) string {
	return strings.Join(MeaningfulLines(raw, MaxPreviewLines), "\n")
}

// KeepLine reports whether a single (already-trimmed) line carries
// conversational value. The filter is bidirectional: a line matching a
// non-prompt prefix survives if it also contains a prompt cue (a
// question mark, an imperative leading verb, or a conversational
// lead-in).
func KeepLine(line string) bool {
	if line == "" {
		return false
	}

	lower := strings.ToLower(line)
	for _, status := range statusOnly {
		if lower == status {
			return false
		}
	}

	// Envelope tags are handled by the command parser, never previewed.
	if strings.HasPrefix(line, "<") {
		return false
	}
	if strings.HasPrefix(lower, "caveat:") {
		return false
	}

	for _, prefix := range nonPromptPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return hasPromptCue(lower)
		}
	}
	return true
}

func hasPromptCue(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	for _, lead := range conversationalLeadIns {
		if strings.Contains(lower, lead) {
			return true
		}
	}
	fields := strings.Fields(lower)
	if len(fields) > 0 {
		word := strings.Trim(fields[0], ".,:;!")
		if _, ok := imperativeVerbs[word]; ok {
			return true
		}
	}
	return false
}
