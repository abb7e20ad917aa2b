package cline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spoolworks/spool/pkg/blob"
	"github.com/spoolworks/spool/pkg/convert"
	"github.com/spoolworks/spool/pkg/unified"
)

// ParseFile reads a ui_messages JSON array from disk.
func ParseFile(path string) ([]UIMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open ui_messages: %w", err)
	}
	var messages []UIMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse ui_messages: %w", err)
	}
	return messages, nil
}

// ConvertFile parses and converts a ui_messages file.
func ConvertFile(path string, opts convert.Options) (*convert.Result, error) {
	messages, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Convert(messages, opts)
}

// Convert turns a ui_messages sequence into a unified transcript. The
// array is already chronological; command output events pair with the
// preceding command event.
func Convert(events []UIMessage, opts convert.Options) (*convert.Result, error) {
	if len(events) == 0 {
		return nil, nil
	}

	c := &clineConverter{
		opts:        opts,
		blobs:       blob.NewSet(),
		usage:       convert.NewUsageAccumulator(opts.Table()),
		cwd:         opts.CWD,
		lastCommand: -1,
		editedFiles: make(map[string]struct{}),
	}
	for i := range events {
		c.consume(&events[i])
	}
	return c.assemble()
}

type clineConverter struct {
	opts  convert.Options
	blobs *blob.Set
	usage *convert.UsageAccumulator

	messages    []unified.Message
	lastCommand int // index of the command message awaiting output, -1 when none

	toolCount int
	userCount int

	editedFiles   map[string]struct{}
	linesAdded    int
	linesRemoved  int
	linesModified int
	reportedCost  float64

	cwd     string
	model   string
	lastTS  int64
	preview string
}

func (c *clineConverter) consume(e *UIMessage) {
	if e.Timestamp > c.lastTS {
		c.lastTS = e.Timestamp
	}

	switch e.Type {
	case "say":
		c.consumeSay(e)
	case "ask":
		c.consumeAsk(e)
	}
}

func (c *clineConverter) consumeSay(e *UIMessage) {
	switch e.Say {
	case "text", "completion_result":
		if text := strings.TrimSpace(e.Text); text != "" {
			c.emit(e, unified.Message{Type: unified.MessageAgent, Text: text})
		}
	case "reasoning":
		if text := strings.TrimSpace(e.Text); text != "" {
			c.emit(e, unified.Message{Type: unified.MessageThinking, Text: text})
		}
	case "user_feedback":
		c.emitUser(e)
	case "tool":
		c.emitTool(e)
	case "command":
		c.emitCommand(e)
	case "command_output":
		c.attachCommandOutput(e)
	case "api_req_started":
		c.recordUsage(e)
	}
}

func (c *clineConverter) consumeAsk(e *UIMessage) {
	switch e.Ask {
	case "followup":
		if text := strings.TrimSpace(e.Text); text != "" {
			c.emit(e, unified.Message{Type: unified.MessageAgent, Text: text})
		}
	case "command":
		c.emitCommand(e)
	}
}

func (c *clineConverter) emitUser(e *UIMessage) {
	text := strings.TrimSpace(e.Text)

	var images []unified.ImageRef
	for _, url := range e.Images {
		if ref, ok := blob.ExtractDataURL(url, c.blobs); ok {
			images = append(images, unified.ImageRef{Sha256: ref.Sha256, MediaType: ref.MediaType})
		}
	}

	if len(convert.MeaningfulLines(text, 1)) == 0 && len(images) == 0 {
		return
	}
	if c.preview == "" {
		c.preview = convert.PreviewText(text)
	}
	c.emit(e, unified.Message{Type: unified.MessageUser, Text: text, Images: images})
	c.userCount++
}

func (c *clineConverter) emitTool(e *UIMessage) {
	payload, ok := decodeText[ToolPayload](e.Text)
	if !ok || payload.Tool == "" {
		return
	}

	tool := payload.Tool
	input := map[string]any{}
	if payload.Path != "" {
		input["path"] = convert.RelativizePath(c.cwd, payload.Path)
	}
	if payload.Regex != "" {
		input["regex"] = payload.Regex
	}
	if payload.Pattern != "" {
		input["filePattern"] = payload.Pattern
	}

	msg := unified.Message{Type: unified.MessageToolCall, Tool: &tool, Input: input}
	// Cline logs the tool's effect inline rather than as a separate
	// result event, so the output attaches immediately.
	switch {
	case payload.Diff != "":
		msg.Output = map[string]any{"diff": payload.Diff}
		c.recordEdit(payload.Path, payload.Diff)
	case payload.Content != "":
		msg.Output = convert.RelativizeValue(map[string]any{"content": payload.Content}, c.cwd)
	}
	msg.IsError = false

	c.emit(e, msg)
	c.toolCount++
}

// recordEdit folds a tool diff into the transcript's file-change
// figures, treating paired add+remove lines as in-place modifications.
func (c *clineConverter) recordEdit(path, diff string) {
	if path != "" {
		c.editedFiles[path] = struct{}{}
	}
	added, removed := convert.DiffStats(diff)
	modified := min(added, removed)
	c.linesAdded += added - modified
	c.linesRemoved += removed - modified
	c.linesModified += modified
}

func (c *clineConverter) emitCommand(e *UIMessage) {
	command := strings.TrimSpace(e.Text)
	if command == "" {
		return
	}
	c.lastCommand = len(c.messages)
	c.emit(e, unified.Message{
		Type:    unified.MessageCommand,
		Command: convert.StripShellWrapper(command),
	})
}

func (c *clineConverter) attachCommandOutput(e *UIMessage) {
	if c.lastCommand < 0 || c.lastCommand >= len(c.messages) {
		return
	}
	msg := &c.messages[c.lastCommand]
	if msg.Type != unified.MessageCommand {
		return
	}
	if msg.Stdout != "" {
		msg.Stdout += "\n"
	}
	msg.Stdout += strings.TrimRight(e.Text, "\n")
}

func (c *clineConverter) recordUsage(e *UIMessage) {
	payload, ok := decodeText[APIRequestPayload](e.Text)
	if !ok {
		return
	}
	if payload.Model != "" {
		c.model = payload.Model
	}
	counted := c.usage.Add(c.model, "", payload.RequestID, tsID(e.Timestamp), convert.RawUsage{
		Input:      payload.TokensIn,
		CacheWrite: payload.CacheWrite,
		CacheRead:  payload.CacheReads,
		Output:     payload.TokensOut,
	})
	if counted {
		c.reportedCost += payload.Cost
	}
}

// costUSD prefers the costs the producer priced its own requests with;
// the pricing table only fills in when no request carried one.
func (c *clineConverter) costUSD() float64 {
	if c.reportedCost > 0 {
		return c.reportedCost
	}
	return c.usage.Cost()
}

// emit stamps the event's identity and time onto a message and appends
// it. Cline events have no UUIDs; the millisecond timestamp serves as
// the identifier.
func (c *clineConverter) emit(e *UIMessage, msg unified.Message) {
	msg.ID = tsID(e.Timestamp)
	msg.Timestamp = tsISO(e.Timestamp)
	if msg.Model == "" && msg.Type != unified.MessageUser && msg.Type != unified.MessageCommand {
		msg.Model = c.model
	}
	c.messages = append(c.messages, msg)
}

func tsID(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

func tsISO(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

func (c *clineConverter) assemble() (*convert.Result, error) {
	if len(c.messages) == 0 {
		return nil, nil
	}

	t := &unified.Transcript{
		V:                unified.FormatVersion,
		ID:               c.transcriptID(),
		Source:           string(convert.SourceCline),
		Timestamp:        c.timestamp(),
		BlendedTokens:    c.usage.Blended(),
		CostUSD:          c.costUSD(),
		MessageCount:     len(c.messages),
		ToolCount:        c.toolCount,
		UserMessageCount: c.userCount,
		FilesChanged:     len(c.editedFiles),
		LinesAdded:       c.linesAdded,
		LinesRemoved:     c.linesRemoved,
		LinesModified:    c.linesModified,
		TokenUsage:       c.usage.Total(),
		ModelUsage:       c.usage.PerModel(),
		Git:              c.opts.Git,
		CWD:              c.cwd,
		Messages:         c.messages,
	}

	if c.preview != "" {
		t.Preview = &c.preview
	}
	if c.model != "" {
		model := unified.NormalizeModel(c.model)
		t.Model = &model
	}
	if c.opts.ClientVersion != "" {
		t.ClientVersion = &c.opts.ClientVersion
	}
	if t.Git == nil && c.cwd != "" {
		t.Git = &unified.GitContext{Dir: ".", Repo: filepath.Base(c.cwd)}
	}

	if err := unified.Validate(t); err != nil {
		return nil, fmt.Errorf("assembled transcript is invalid: %w", err)
	}
	return &convert.Result{Transcript: t, Blobs: c.blobs.Blobs()}, nil
}

func (c *clineConverter) transcriptID() string {
	if c.lastTS > 0 {
		return tsID(c.lastTS)
	}
	return uuid.NewString()
}

func (c *clineConverter) timestamp() string {
	if c.lastTS > 0 {
		return tsISO(c.lastTS)
	}
	return c.opts.Clock().Format(time.RFC3339)
}
