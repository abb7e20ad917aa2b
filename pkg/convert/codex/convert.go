package codex

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/blob"
	"github.com/spoolworks/spool/pkg/convert"
	"github.com/spoolworks/spool/pkg/unified"
)

const (
	scanInitialBuffer = 1024 * 1024
	scanMaxLine       = 64 * 1024 * 1024
)

// ParseFile reads a rollout JSONL file, skipping malformed lines.
func ParseFile(path string, log *zap.Logger) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rollout: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, scanInitialBuffer), scanMaxLine)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Debug("skipping malformed rollout line",
				zap.Int("line", line), zap.Error(err))
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan rollout: %w", err)
	}
	return events, nil
}

// ConvertFile parses and converts a rollout file.
func ConvertFile(path string, opts convert.Options) (*convert.Result, error) {
	events, err := ParseFile(path, opts.Log())
	if err != nil {
		return nil, err
	}
	return Convert(events, opts)
}

type callRef struct {
	index    int
	tool     string
	attached bool
}

// Convert turns a rollout event sequence into a unified transcript.
// Rollouts are already chronological, so no flattening pass is needed;
// tool linking still goes through call identifiers because outputs can
// land several events after their call.
func Convert(events []Event, opts convert.Options) (*convert.Result, error) {
	if len(events) == 0 {
		return nil, nil
	}

	c := &codexConverter{
		opts:  opts,
		blobs: blob.NewSet(),
		usage: convert.NewUsageAccumulator(opts.Table()),
		calls: make(map[string]*callRef),
		cwd:   opts.CWD,
	}
	for i := range events {
		c.consume(&events[i])
	}
	return c.assemble()
}

type codexConverter struct {
	opts  convert.Options
	blobs *blob.Set
	usage *convert.UsageAccumulator
	calls map[string]*callRef

	messages  []unified.Message
	toolCount int
	userCount int
	usageSeq  int

	sessionID  string
	cwd        string
	cliVersion string
	git        *GitInfo
	model      string
	lastTS     string
	preview    string
}

func (c *codexConverter) consume(e *Event) {
	if e.Timestamp != "" {
		c.lastTS = e.Timestamp
	}

	switch e.Type {
	case "session_meta":
		c.sessionID = e.Payload.ID
		if c.cwd == "" {
			c.cwd = e.Payload.CWD
		}
		c.cliVersion = e.Payload.CLIVersion
		c.git = e.Payload.Git
	case "turn_context":
		if e.Payload.Model != "" {
			c.model = e.Payload.Model
		}
	case "response_item":
		c.consumeItem(e)
	case "event_msg":
		c.consumeEventMsg(e)
	}
}

func (c *codexConverter) consumeItem(e *Event) {
	p := &e.Payload
	switch p.Type {
	case "message":
		c.consumeMessage(e)
	case "reasoning":
		var texts []string
		for _, part := range p.Summary {
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
		if len(texts) > 0 {
			c.messages = append(c.messages, unified.Message{
				Type:      unified.MessageThinking,
				Timestamp: e.Timestamp,
				Model:     c.model,
				Text:      strings.Join(texts, "\n"),
			})
		}
	case "function_call":
		c.emitCall(e)
	case "function_call_output":
		c.attachOutput(e)
	}
}

func (c *codexConverter) consumeMessage(e *Event) {
	p := &e.Payload
	var texts []string
	for _, part := range p.Content {
		switch part.Type {
		case "input_text", "output_text", "text":
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
	}
	text := strings.TrimSpace(strings.Join(texts, "\n"))
	if text == "" {
		return
	}

	switch p.Role {
	case "user":
		// Instruction envelopes and environment context are producer
		// scaffolding, not conversation.
		if strings.HasPrefix(text, "<") {
			return
		}
		if len(convert.MeaningfulLines(text, 1)) == 0 {
			return
		}
		if c.preview == "" {
			c.preview = convert.PreviewText(text)
		}
		c.messages = append(c.messages, unified.Message{
			Type:      unified.MessageUser,
			Timestamp: e.Timestamp,
			Text:      text,
		})
		c.userCount++
	case "assistant":
		c.messages = append(c.messages, unified.Message{
			Type:      unified.MessageAgent,
			Timestamp: e.Timestamp,
			Model:     c.model,
			Text:      text,
		})
	}
}

func (c *codexConverter) emitCall(e *Event) {
	p := &e.Payload
	tool := p.Name

	input := map[string]any{}
	if p.Arguments != "" {
		if err := json.Unmarshal([]byte(p.Arguments), &input); err != nil {
			input = map[string]any{"arguments": p.Arguments}
		}
	}
	input = c.sanitizeInput(tool, input)

	c.calls[p.CallID] = &callRef{index: len(c.messages), tool: tool}
	c.messages = append(c.messages, unified.Message{
		Type:      unified.MessageToolCall,
		ID:        p.CallID,
		Timestamp: e.Timestamp,
		Model:     c.model,
		Tool:      &tool,
		Input:     input,
	})
	c.toolCount++
}

// sanitizeInput unwraps shell argv envelopes and relativizes paths.
func (c *codexConverter) sanitizeInput(tool string, input map[string]any) map[string]any {
	switch tool {
	case "shell", "local_shell", "exec_command":
		if argv, ok := input["command"].([]any); ok {
			strs := make([]string, 0, len(argv))
			for _, a := range argv {
				if s, ok := a.(string); ok {
					strs = append(strs, s)
				}
			}
			input["command"] = convert.UnwrapShellArgv(strs)
		} else if cmd, ok := input["command"].(string); ok {
			input["command"] = convert.StripShellWrapper(cmd)
		}
		delete(input, "timeout_ms")
		return input
	default:
		out, _ := convert.RelativizeValue(input, c.cwd).(map[string]any)
		return out
	}
}

func (c *codexConverter) attachOutput(e *Event) {
	p := &e.Payload
	ref, ok := c.calls[p.CallID]
	if !ok || ref.attached {
		return
	}
	ref.attached = true
	msg := &c.messages[ref.index]

	text, exitCode := decodeOutput(p.Output)
	out := map[string]any{"output": text}
	if exitCode != nil {
		out["exitCode"] = *exitCode
	}
	msg.Output = blob.ExtractImages(convert.RelativizeValue(out, c.cwd), c.blobs)

	isError := exitCode != nil && *exitCode != 0
	msg.IsError = isError
	if isError {
		msg.Error = strings.TrimSpace(text)
	}
}

// decodeOutput handles both output shapes: a JSON object with output
// text plus exit metadata, or a bare string.
func decodeOutput(raw json.RawMessage) (string, *int) {
	if len(raw) == 0 {
		return "", nil
	}
	if text, exit, ok := decodeStructured(raw); ok {
		return text, exit
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		// The bare string sometimes wraps the structured shape once
		// more.
		if text, exit, ok := decodeStructured([]byte(s)); ok {
			return text, exit
		}
		return s, nil
	}
	return string(raw), nil
}

// decodeStructured recognizes the structured output shape. An empty
// output string is still structured when exit metadata rides along: a
// failing command with no stdout must keep its exit code.
func decodeStructured(raw []byte) (string, *int, bool) {
	var structured FunctionOutput
	if err := json.Unmarshal(raw, &structured); err != nil {
		return "", nil, false
	}
	if structured.Output == "" && structured.Metadata == nil {
		return "", nil, false
	}
	var exit *int
	if structured.Metadata != nil {
		exit = structured.Metadata.ExitCode
	}
	return structured.Output, exit, true
}

func (c *codexConverter) consumeEventMsg(e *Event) {
	p := &e.Payload
	switch p.Type {
	case "token_count":
		if p.Info == nil {
			return
		}
		last := p.Info.LastTokenUsage
		c.usageSeq++
		// Input already includes cached tokens here, so they are
		// subtracted before the accumulator re-adds them.
		c.usage.Add(c.qualifiedModel(), "", "", fmt.Sprintf("token_count:%d", c.usageSeq), convert.RawUsage{
			Input:     max(last.InputTokens-last.CachedInputTokens, 0),
			CacheRead: last.CachedInputTokens,
			Output:    max(last.OutputTokens-last.ReasoningTokens, 0),
			Reasoning: last.ReasoningTokens,
		})
	}
}

func (c *codexConverter) assemble() (*convert.Result, error) {
	if len(c.messages) == 0 && c.sessionID == "" {
		return nil, nil
	}
	if c.messages == nil {
		// Keep "messages" an array, not null, for metadata-only rollouts.
		c.messages = []unified.Message{}
	}

	t := &unified.Transcript{
		V:                unified.FormatVersion,
		ID:               c.transcriptID(),
		Source:           string(convert.SourceCodex),
		Timestamp:        c.timestamp(),
		BlendedTokens:    c.usage.Blended(),
		CostUSD:          c.usage.Cost(),
		MessageCount:     len(c.messages),
		ToolCount:        c.toolCount,
		UserMessageCount: c.userCount,
		TokenUsage:       c.usage.Total(),
		ModelUsage:       c.usage.PerModel(),
		Git:              c.gitContext(),
		CWD:              c.cwd,
		Messages:         c.messages,
	}

	if c.preview != "" {
		t.Preview = &c.preview
	}
	if c.model != "" {
		model := c.qualifiedModel()
		t.Model = &model
	}
	if v := c.clientVersion(); v != "" {
		t.ClientVersion = &v
	}

	if err := unified.Validate(t); err != nil {
		return nil, fmt.Errorf("assembled transcript is invalid: %w", err)
	}
	return &convert.Result{Transcript: t, Blobs: c.blobs.Blobs()}, nil
}

// qualifiedModel prefixes the provider: rollout model names arrive
// bare, and this producer's models are OpenAI's.
func (c *codexConverter) qualifiedModel() string {
	if c.model == "" || strings.Contains(c.model, "/") {
		return c.model
	}
	return "openai/" + c.model
}

func (c *codexConverter) transcriptID() string {
	if c.sessionID != "" {
		return c.sessionID
	}
	return uuid.NewString()
}

func (c *codexConverter) timestamp() string {
	if c.lastTS != "" {
		return c.lastTS
	}
	return c.opts.Clock().Format(time.RFC3339)
}

func (c *codexConverter) clientVersion() string {
	if c.opts.ClientVersion != "" {
		return c.opts.ClientVersion
	}
	return c.cliVersion
}

func (c *codexConverter) gitContext() *unified.GitContext {
	if c.opts.Git != nil {
		return c.opts.Git
	}
	if c.git == nil {
		return nil
	}
	repo := c.git.RepositoryURL
	if repo != "" {
		repo = strings.TrimSuffix(filepath.Base(repo), ".git")
	}
	return &unified.GitContext{Dir: ".", Branch: c.git.Branch, Repo: repo}
}
