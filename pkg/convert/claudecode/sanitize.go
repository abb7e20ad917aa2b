package claudecode

import (
	"encoding/json"
	"strings"

	"github.com/spoolworks/spool/pkg/convert"
	"github.com/spoolworks/spool/pkg/unified"
)

// Sanitizer reshapes tool inputs and outputs into their compact
// canonical forms. Dispatch is a lookup table on the tool name;
// unrecognized tools fall through to generic path rewriting so that new
// tools never break the pipeline.
type Sanitizer struct {
	cwd   string
	stats *EditStats
}

// EditStats accumulates file-change figures across a transcript's
// write/edit tool calls.
type EditStats struct {
	files    map[string]struct{}
	Added    int
	Removed  int
	Modified int
}

func NewSanitizer(cwd string) *Sanitizer {
	return &Sanitizer{
		cwd:   cwd,
		stats: &EditStats{files: make(map[string]struct{})},
	}
}

func (s *Sanitizer) Stats() *EditStats {
	return s.stats
}

// FilesChanged is the count of distinct files touched by write or edit
// tools.
func (e *EditStats) FilesChanged() int {
	return len(e.files)
}

// recordDiff splits a diff's counts into added / removed / modified,
// treating paired add+remove lines as in-place modifications.
func (e *EditStats) recordDiff(diff string) {
	added, removed := convert.DiffStats(diff)
	modified := min(added, removed)
	e.Added += added - modified
	e.Removed += removed - modified
	e.Modified += modified
}

// legacyStringErrorTool is the one tool whose error flag has
// historically been serialized as the string "true"/"false" instead of
// a boolean. Downstream consumers may depend on that shape, so it is
// preserved byte-for-byte rather than fixed.
const legacyStringErrorTool = "Bash"

// ErrorFlag serializes a tool call's error indicator, preserving the
// legacy string form for the shell tool.
func (s *Sanitizer) ErrorFlag(tool string, isError bool) any {
	if tool == legacyStringErrorTool {
		if isError {
			return "true"
		}
		return "false"
	}
	return isError
}

// Input reduces a tool invocation's input to its canonical shape.
func (s *Sanitizer) Input(tool string, in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	switch tool {
	case "Write":
		return s.writeInput(in)
	case "Read":
		return s.readInput(in)
	case "Edit":
		return s.editInput(in)
	case "MultiEdit":
		return s.multiEditInput(in)
	case "Glob", "Grep", "LS":
		return s.searchInput(in)
	case "Bash":
		return s.bashInput(in)
	case "Task":
		return s.taskInput(in)
	case "TodoWrite":
		return s.todoInput(in)
	default:
		out, _ := convert.RelativizeValue(in, s.cwd).(map[string]any)
		return out
	}
}

// Output reduces a tool result to its canonical shape. content is the
// in-message tool_result payload; toolResult is the richer top-level
// toolUseResult object when the producer attached one. msg is the
// already-emitted tool-call message, which edit results refine in
// place (the structured patch yields a better diff than the legacy
// old/new strings).
func (s *Sanitizer) Output(tool string, content any, toolResult map[string]any, msg *unified.Message) any {
	switch tool {
	case "Write":
		return s.writeOutput(toolResult)
	case "Read":
		return s.readOutput(content, toolResult)
	case "Edit", "MultiEdit":
		return s.editOutput(content, toolResult, msg)
	case "Glob", "Grep", "LS":
		return s.searchOutput(content, toolResult)
	case "Bash":
		return s.bashOutput(content, toolResult)
	case "Task":
		return s.taskOutput(toolResult)
	case "TodoWrite":
		return s.todoOutput(toolResult)
	default:
		if toolResult != nil {
			return convert.RelativizeValue(toolResult, s.cwd)
		}
		return convert.RelativizeValue(content, s.cwd)
	}
}

// --- file write ---

func (s *Sanitizer) writeInput(in map[string]any) map[string]any {
	path := s.relField(in, "file_path")
	if content, ok := in["content"].(string); ok {
		s.stats.recordDiff(convert.UnifiedDiff("", content))
	}
	if abs, ok := in["file_path"].(string); ok {
		s.stats.files[abs] = struct{}{}
	}
	// Full file content lives in the repo itself; only the path is
	// worth keeping.
	return map[string]any{"file_path": path}
}

func (s *Sanitizer) writeOutput(toolResult map[string]any) any {
	op := "update"
	if t, ok := toolResult["type"].(string); ok && t != "" {
		op = t
	}
	return map[string]any{"type": op}
}

// --- file read ---

// readFileFields is the bounded set of file-slice fields kept on read
// results.
var readFileFields = []string{"filePath", "content", "numLines", "startLine", "totalLines"}

func (s *Sanitizer) readInput(in map[string]any) map[string]any {
	out := map[string]any{"file_path": s.relField(in, "file_path")}
	for _, key := range []string{"offset", "limit"} {
		if v, ok := in[key]; ok {
			out[key] = v
		}
	}
	return out
}

func (s *Sanitizer) readOutput(content any, toolResult map[string]any) any {
	file, _ := toolResult["file"].(map[string]any)
	if file == nil {
		return convert.RelativizeValue(content, s.cwd)
	}
	kept := make(map[string]any, len(readFileFields))
	for _, key := range readFileFields {
		if v, ok := file[key]; ok {
			kept[key] = v
		}
	}
	if p, ok := kept["filePath"].(string); ok {
		kept["filePath"] = convert.RelativizePath(s.cwd, p)
	}
	return map[string]any{"type": "text", "file": kept}
}

// --- file edit ---

func (s *Sanitizer) editInput(in map[string]any) map[string]any {
	path := s.relField(in, "file_path")
	if abs, ok := in["file_path"].(string); ok {
		s.stats.files[abs] = struct{}{}
	}

	oldStr, _ := in["old_string"].(string)
	newStr, _ := in["new_string"].(string)
	diff := convert.UnifiedDiff(oldStr, newStr)
	s.stats.recordDiff(diff)

	return map[string]any{"file_path": path, "diff": diff}
}

func (s *Sanitizer) multiEditInput(in map[string]any) map[string]any {
	path := s.relField(in, "file_path")
	if abs, ok := in["file_path"].(string); ok {
		s.stats.files[abs] = struct{}{}
	}

	var parts []string
	edits, _ := in["edits"].([]any)
	for _, e := range edits {
		edit, _ := e.(map[string]any)
		if edit == nil {
			continue
		}
		oldStr, _ := edit["old_string"].(string)
		newStr, _ := edit["new_string"].(string)
		if d := convert.UnifiedDiff(oldStr, newStr); d != "" {
			s.stats.recordDiff(d)
			parts = append(parts, d)
		}
	}
	return map[string]any{"file_path": path, "diff": strings.Join(parts, "\n")}
}

func (s *Sanitizer) editOutput(content any, toolResult map[string]any, msg *unified.Message) any {
	out := map[string]any{"type": "edit"}

	if hunks := structuredPatch(toolResult); len(hunks) > 0 {
		// The structured patch supersedes the old/new-string diff.
		if msg != nil && msg.Input != nil {
			msg.Input["diff"] = convert.DiffFromHunks(hunks)
		}
		out["startLine"] = convert.StartLineFromHunks(hunks)
		return out
	}

	if text, ok := contentText(content); ok {
		if line := convert.StartLineFromCatN(text); line > 0 {
			out["startLine"] = line
		}
	}
	return out
}

func structuredPatch(toolResult map[string]any) []convert.Hunk {
	raw, ok := toolResult["structuredPatch"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var hunks []convert.Hunk
	if err := json.Unmarshal(data, &hunks); err != nil {
		return nil
	}
	return hunks
}

// --- directory / content search ---

func (s *Sanitizer) searchInput(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, v := range in {
		out[key] = v
	}
	for _, key := range []string{"path", "file_path"} {
		if p, ok := out[key].(string); ok {
			out[key] = convert.RelativizePath(s.cwd, p)
		}
	}
	return out
}

func (s *Sanitizer) searchOutput(content any, toolResult map[string]any) any {
	if toolResult == nil {
		return convert.RelativizeValue(content, s.cwd)
	}
	out := make(map[string]any, len(toolResult))
	for key, v := range toolResult {
		// Raw counts duplicate the filename list length.
		if key == "numFiles" || key == "numLines" || key == "durationMs" {
			continue
		}
		out[key] = v
	}
	if names, ok := out["filenames"].([]any); ok {
		for i, n := range names {
			if p, ok := n.(string); ok {
				names[i] = convert.RelativizePath(s.cwd, p)
			}
		}
	}
	return out
}

// --- shell execution ---

func (s *Sanitizer) bashInput(in map[string]any) map[string]any {
	out := map[string]any{}
	if cmd, ok := in["command"].(string); ok {
		out["command"] = convert.StripShellWrapper(cmd)
	}
	if desc, ok := in["description"].(string); ok && desc != "" {
		out["description"] = desc
	}
	return out
}

func (s *Sanitizer) bashOutput(content any, toolResult map[string]any) any {
	if toolResult == nil {
		return convert.RelativizeValue(content, s.cwd)
	}
	out := make(map[string]any, len(toolResult))
	for key, v := range toolResult {
		// Line counts duplicate the text they describe.
		if key == "stdoutLines" || key == "stderrLines" {
			continue
		}
		out[key] = v
	}
	return out
}

// --- subagent / task ---

func (s *Sanitizer) taskInput(in map[string]any) map[string]any {
	out := map[string]any{}
	for _, key := range []string{"description", "subagent_type"} {
		if v, ok := in[key]; ok {
			out[key] = v
		}
	}
	// The prompt duplicates the subagent's own first user message.
	return out
}

func (s *Sanitizer) taskOutput(toolResult map[string]any) any {
	if toolResult == nil {
		return nil
	}
	out := map[string]any{}
	if v, ok := toolResult["totalToolUseCount"]; ok {
		out["totalToolUseCount"] = v
	}
	if raw, ok := toolResult["usage"].(map[string]any); ok {
		out["usage"] = normalizeNestedUsage(raw)
	}
	if content, ok := toolResult["content"]; ok {
		out["content"] = convert.RelativizeValue(content, s.cwd)
	}
	return out
}

// normalizeNestedUsage folds a producer usage block into the canonical
// TokenUsage field set.
func normalizeNestedUsage(raw map[string]any) map[string]any {
	num := func(key string) int64 {
		if v, ok := raw[key].(float64); ok {
			return int64(v)
		}
		return 0
	}
	input := num("input_tokens") + num("cache_creation_input_tokens") + num("cache_read_input_tokens")
	output := num("output_tokens")
	return map[string]any{
		"input":       input,
		"cachedInput": num("cache_read_input_tokens"),
		"output":      output,
		"reasoning":   int64(0),
		"total":       input + output,
	}
}

// --- todo list ---

func (s *Sanitizer) todoInput(in map[string]any) map[string]any {
	out := map[string]any{}
	if todos, ok := in["todos"].([]any); ok {
		out["todos"] = stripActiveForm(todos)
	}
	return out
}

func (s *Sanitizer) todoOutput(toolResult map[string]any) any {
	if toolResult == nil {
		return nil
	}
	out := map[string]any{}
	for _, key := range []string{"oldTodos", "newTodos"} {
		if todos, ok := toolResult[key].([]any); ok {
			out[key] = stripActiveForm(todos)
		}
	}
	return out
}

// stripActiveForm drops the verbose activeForm field from every todo
// item.
func stripActiveForm(todos []any) []any {
	out := make([]any, 0, len(todos))
	for _, t := range todos {
		item, ok := t.(map[string]any)
		if !ok {
			out = append(out, t)
			continue
		}
		kept := make(map[string]any, len(item))
		for key, v := range item {
			if key == "activeForm" {
				continue
			}
			kept[key] = v
		}
		out = append(out, kept)
	}
	return out
}

// --- helpers ---

func (s *Sanitizer) relField(in map[string]any, key string) string {
	p, _ := in[key].(string)
	return convert.RelativizePath(s.cwd, p)
}

// contentText flattens a tool_result content payload (string or array
// of text blocks) into plain text.
func contentText(content any) (string, bool) {
	switch c := content.(type) {
	case string:
		return c, true
	case []any:
		var sb strings.Builder
		for _, part := range c {
			block, _ := part.(map[string]any)
			if block == nil || block["type"] != "text" {
				continue
			}
			if text, ok := block["text"].(string); ok {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(text)
			}
		}
		return sb.String(), sb.Len() > 0
	default:
		return "", false
	}
}
