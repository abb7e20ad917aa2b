package claudecode

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/blob"
	"github.com/spoolworks/spool/pkg/convert"
	"github.com/spoolworks/spool/pkg/unified"
)

// ConvertFile parses a transcript from disk and converts it. A nil
// result with a nil error means the file held no usable records.
func ConvertFile(path string, opts convert.Options) (*convert.Result, error) {
	records, err := ParseFile(path, opts.Log())
	if err != nil {
		return nil, err
	}
	return Convert(records, opts)
}

// Convert turns a raw record set into a unified transcript. The whole
// call is synchronous and single-threaded; converting many transcripts
// in parallel is the caller's business, each call being fully isolated.
func Convert(records []Record, opts convert.Options) (*convert.Result, error) {
	flat := Flatten(records)
	if len(flat) == 0 {
		return nil, nil
	}

	c := newConverter(flat, opts)
	for i := range flat {
		c.consume(&flat[i])
	}
	c.messages = append(c.messages, c.commands.Flush()...)

	return c.assemble()
}

// callRef locates an emitted tool-call message so a later result can
// find it by call identifier, no matter which branch of the record tree
// the result was attached to.
type callRef struct {
	index    int
	tool     string
	attached bool
}

type converter struct {
	opts     convert.Options
	log      *zap.Logger
	san      *Sanitizer
	blobs    *blob.Set
	usage    *convert.UsageAccumulator
	commands *convert.CommandParser

	messages []unified.Message
	calls    map[string]*callRef

	// dedup state
	userIndex map[string]int
	agentSeen map[string]struct{}

	toolCount int
	userCount int

	cwd       string
	gitBranch string
	version   string
	sessionID string
	lastUUID  string
	lastTS    string

	firstModel string
	preview    string
}

func newConverter(flat []Record, opts convert.Options) *converter {
	cwd := opts.CWD
	for _, r := range flat {
		if cwd != "" {
			break
		}
		cwd = r.CWD
	}

	return &converter{
		opts:      opts,
		log:       opts.Log(),
		san:       NewSanitizer(cwd),
		blobs:     blob.NewSet(),
		usage:     convert.NewUsageAccumulator(opts.Table()),
		commands:  convert.NewCommandParser(),
		calls:     make(map[string]*callRef),
		userIndex: make(map[string]int),
		agentSeen: make(map[string]struct{}),
		cwd:       cwd,
	}
}

func (c *converter) consume(r *Record) {
	if r.UUID != "" {
		c.lastUUID = r.UUID
	}
	if r.Timestamp != "" {
		c.lastTS = r.Timestamp
	}
	if c.sessionID == "" && r.SessionID != "" {
		c.sessionID = r.SessionID
	}
	if c.gitBranch == "" && r.GitBranch != "" {
		c.gitBranch = r.GitBranch
	}
	if c.version == "" && r.Version != "" {
		c.version = r.Version
	}

	switch r.Type {
	case "user":
		c.consumeUser(r)
	case "assistant":
		c.consumeAssistant(r)
	default:
		// summary, system and file-history records carry no
		// conversational content.
	}
}

// --- user records ---

func (c *converter) consumeUser(r *Record) {
	if r.IsMeta {
		return
	}

	if r.IsCompactSummary {
		if text := c.recordText(r); text != "" {
			c.messages = append(c.messages, unified.Message{
				Type:      unified.MessageCompaction,
				ID:        r.UUID,
				Timestamp: r.Timestamp,
				Text:      text,
			})
		}
		return
	}

	blocks := r.Message.ContentBlocks()
	if blocks == nil {
		c.userText(r, r.Message.ContentText(), nil)
		return
	}

	var texts []string
	var images []unified.ImageRef
	for i := range blocks {
		block := &blocks[i]
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_result":
			c.attachResult(r, block)
		case "image":
			if ref, ok := c.extractImage(block); ok {
				images = append(images, ref)
			}
		}
	}
	c.userText(r, strings.Join(texts, "\n"), images)
}

// userText runs the command-envelope parser, the noise filter and the
// (timestamp, text) dedup before emitting a user message. Producers log
// the same user turn twice, once with and once without attachments; the
// merge keeps the images from whichever copy has them.
func (c *converter) userText(r *Record, raw string, images []unified.ImageRef) {
	if msgs, handled := c.commands.Feed(raw, r.UUID, r.Timestamp); handled {
		c.messages = append(c.messages, msgs...)
		return
	}

	text := strings.TrimSpace(raw)
	if len(convert.MeaningfulLines(text, 1)) == 0 && len(images) == 0 {
		return
	}

	key := r.Timestamp + "|" + text
	if idx, dup := c.userIndex[key]; dup {
		if len(c.messages[idx].Images) == 0 {
			c.messages[idx].Images = images
		}
		return
	}

	if c.preview == "" {
		c.preview = convert.PreviewText(text)
	}

	c.userIndex[key] = len(c.messages)
	c.messages = append(c.messages, unified.Message{
		Type:      unified.MessageUser,
		ID:        r.UUID,
		Timestamp: r.Timestamp,
		Text:      text,
		Images:    images,
	})
	c.userCount++
}

func (c *converter) extractImage(block *Block) (unified.ImageRef, bool) {
	node := blob.ExtractImages(map[string]any{
		"type":   "image",
		"source": block.Source,
	}, c.blobs)
	refs := blob.CollectRefs(node)
	if len(refs) == 0 {
		return unified.ImageRef{}, false
	}
	return unified.ImageRef{Sha256: refs[0].Sha256, MediaType: refs[0].MediaType}, true
}

// --- assistant records ---

func (c *converter) consumeAssistant(r *Record) {
	msg := r.Message
	if msg == nil {
		return
	}

	if msg.Usage != nil {
		c.usage.Add(msg.Model, msg.ID, r.RequestID, r.UUID, convert.RawUsage{
			Input:      msg.Usage.InputTokens,
			CacheWrite: msg.Usage.CacheCreationInputTokens,
			CacheRead:  msg.Usage.CacheReadInputTokens,
			Output:     msg.Usage.OutputTokens,
		})
	}
	if c.firstModel == "" && msg.Model != "" {
		c.firstModel = msg.Model
	}

	blocks := msg.ContentBlocks()
	if blocks == nil {
		if text := strings.TrimSpace(msg.ContentText()); text != "" {
			c.agentText(r, unified.MessageAgent, text)
		}
		return
	}

	for i := range blocks {
		block := &blocks[i]
		switch block.Type {
		case "text":
			if text := strings.TrimSpace(block.Text); text != "" {
				c.agentText(r, unified.MessageAgent, text)
			}
		case "thinking":
			if text := strings.TrimSpace(block.Thinking); text != "" {
				c.agentText(r, unified.MessageThinking, text)
			}
		case "tool_use":
			c.emitToolCall(r, block)
		}
	}
}

// agentText deduplicates assistant text by (message id, timestamp,
// text): streaming producers log the same completion under several
// records.
func (c *converter) agentText(r *Record, kind unified.MessageType, text string) {
	key := r.Message.ID + "|" + r.Timestamp + "|" + text
	if _, dup := c.agentSeen[key]; dup {
		return
	}
	c.agentSeen[key] = struct{}{}

	c.messages = append(c.messages, unified.Message{
		Type:      kind,
		ID:        r.UUID,
		Timestamp: r.Timestamp,
		Model:     r.Message.Model,
		Text:      text,
	})
}

func (c *converter) emitToolCall(r *Record, block *Block) {
	tool := block.Name
	input := c.san.Input(tool, block.Input)
	if input != nil {
		input, _ = blob.ExtractImages(input, c.blobs).(map[string]any)
	}

	c.calls[block.ID] = &callRef{index: len(c.messages), tool: tool}
	c.messages = append(c.messages, unified.Message{
		Type:      unified.MessageToolCall,
		ID:        r.UUID,
		Timestamp: r.Timestamp,
		Model:     r.Message.Model,
		Tool:      &tool,
		Input:     input,
	})
	c.toolCount++
}

// --- tool results ---

// attachResult links a result back to its call by identifier. The
// lookup is identifier-keyed, never position- or branch-relative, so
// results from parallel branches still reach their call. An output,
// once attached, is never overwritten by a later unrelated result.
func (c *converter) attachResult(r *Record, block *Block) {
	ref, ok := c.calls[block.ToolUseID]
	if !ok {
		c.log.Debug("tool result without a matching call",
			zap.String("toolUseId", block.ToolUseID))
		return
	}
	if ref.attached {
		return
	}
	ref.attached = true

	msg := &c.messages[ref.index]
	toolResult := parseToolUseResult(r.ToolUseResult)

	out := c.san.Output(ref.tool, block.Content, toolResult, msg)
	out = blob.ExtractImages(out, c.blobs)
	msg.Output = out

	isError := false
	switch {
	case block.IsError != nil:
		isError = *block.IsError
	default:
		if success, ok := toolResult["success"].(bool); ok {
			isError = !success
		} else if text, ok := contentText(block.Content); ok {
			isError = looksLikeError(text)
		}
	}
	msg.IsError = c.san.ErrorFlag(ref.tool, isError)
	if isError {
		if text, ok := contentText(block.Content); ok {
			msg.Error = strings.TrimSpace(text)
		}
	}
}

// parseToolUseResult decodes the top-level toolUseResult payload, which
// is an object for most tools but a bare string for some legacy ones.
func parseToolUseResult(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	return nil
}

func looksLikeError(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "Error:") ||
		strings.HasPrefix(trimmed, "InputValidationError:") ||
		strings.HasPrefix(trimmed, "Command failed")
}

// --- assembly ---

func (c *converter) assemble() (*convert.Result, error) {
	if c.messages == nil {
		// Everything was filtered; keep "messages" an array, not null.
		c.messages = []unified.Message{}
	}

	t := &unified.Transcript{
		V:                unified.FormatVersion,
		ID:               c.transcriptID(),
		Source:           string(convert.SourceClaudeCode),
		Timestamp:        c.timestamp(),
		BlendedTokens:    c.usage.Blended(),
		CostUSD:          c.usage.Cost(),
		MessageCount:     len(c.messages),
		ToolCount:        c.toolCount,
		UserMessageCount: c.userCount,
		FilesChanged:     c.san.Stats().FilesChanged(),
		LinesAdded:       c.san.Stats().Added,
		LinesRemoved:     c.san.Stats().Removed,
		LinesModified:    c.san.Stats().Modified,
		TokenUsage:       c.usage.Total(),
		ModelUsage:       c.usage.PerModel(),
		Git:              c.gitContext(),
		CWD:              c.cwd,
		Messages:         c.messages,
	}

	if c.preview != "" {
		t.Preview = &c.preview
	}
	if c.firstModel != "" {
		model := unified.NormalizeModel(c.firstModel)
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

func (c *converter) transcriptID() string {
	switch {
	case c.sessionID != "":
		return c.sessionID
	case c.lastUUID != "":
		return c.lastUUID
	default:
		return uuid.NewString()
	}
}

func (c *converter) timestamp() string {
	if c.lastTS != "" {
		return c.lastTS
	}
	return c.opts.Clock().Format(time.RFC3339)
}

func (c *converter) clientVersion() string {
	if c.opts.ClientVersion != "" {
		return c.opts.ClientVersion
	}
	return c.version
}

func (c *converter) gitContext() *unified.GitContext {
	if c.opts.Git != nil {
		return c.opts.Git
	}
	if c.gitBranch == "" && c.cwd == "" {
		return nil
	}
	return &unified.GitContext{
		Dir:    ".",
		Branch: c.gitBranch,
		Repo:   filepath.Base(c.cwd),
	}
}

func (c *converter) recordText(r *Record) string {
	if r.Message == nil {
		return ""
	}
	if text := strings.TrimSpace(r.Message.ContentText()); text != "" {
		return text
	}
	var texts []string
	for _, block := range r.Message.ContentBlocks() {
		if block.Type == "text" && block.Text != "" {
			texts = append(texts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}
