// Package claudecode converts Claude Code JSONL session transcripts
// into the unified document. This is the richest producer format: a
// parent-pointer record graph with sidechains, asynchronous tool
// results, command envelopes and inline image attachments.
package claudecode

import "encoding/json"

// Record is one JSONL line as Claude Code logs it. Parsing is
// deliberately loose: missing fields default, extra fields are ignored,
// and a record is immutable once parsed.
type Record struct {
	Type             string          `json:"type"`
	UUID             string          `json:"uuid"`
	ParentUUID       *string         `json:"parentUuid"`
	IsSidechain      bool            `json:"isSidechain"`
	IsMeta           bool            `json:"isMeta"`
	IsCompactSummary bool            `json:"isCompactSummary"`
	Timestamp        string          `json:"timestamp"`
	SessionID        string          `json:"sessionId"`
	RequestID        string          `json:"requestId"`
	CWD              string          `json:"cwd"`
	GitBranch        string          `json:"gitBranch"`
	Version          string          `json:"version"`
	Message          *RecordMessage  `json:"message"`
	ToolUseResult    json.RawMessage `json:"toolUseResult"`
}

// RecordMessage is the producer-specific payload. Content is either a
// plain string or an array of typed blocks; it stays raw until a
// converter asks for one shape or the other.
type RecordMessage struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *Usage          `json:"usage"`
}

// Usage is the raw token block on assistant records.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// Block is one element of an array-form message content. The field set
// is the union over text, thinking, tool_use, tool_result and image
// blocks; only the fields for a block's Type are meaningful.
type Block struct {
	Type string `json:"type"`

	// text / thinking
	Text     string `json:"text"`
	Thinking string `json:"thinking"`

	// tool_use
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`

	// tool_result
	ToolUseID string `json:"tool_use_id"`
	Content   any    `json:"content"`
	IsError   *bool  `json:"is_error"`

	// image
	Source map[string]any `json:"source"`
}

// ContentText returns string-form content, or "" when the content is an
// array (or absent).
func (m *RecordMessage) ContentText() string {
	if m == nil || len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err != nil {
		return ""
	}
	return s
}

// ContentBlocks returns array-form content, or nil when the content is
// a plain string (or absent).
func (m *RecordMessage) ContentBlocks() []Block {
	if m == nil || len(m.Content) == 0 {
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return nil
	}
	return blocks
}
