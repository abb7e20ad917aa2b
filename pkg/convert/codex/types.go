// Package codex converts Codex rollout JSONL sessions into the unified
// document. Rollout files interleave response items (messages, function
// calls and their outputs, reasoning) with event messages carrying
// token counts.
package codex

import "encoding/json"

// Event is one rollout line: a timestamp, an event type and a
// type-specific payload.
type Event struct {
	Timestamp string  `json:"timestamp"`
	Type      string  `json:"type"`
	Payload   Payload `json:"payload"`
}

// Payload is the union over every payload shape a rollout emits. Only
// the fields for the enclosing event's type are meaningful.
type Payload struct {
	Type string `json:"type"`

	// session_meta
	ID         string   `json:"id"`
	CWD        string   `json:"cwd"`
	CLIVersion string   `json:"cli_version"`
	Git        *GitInfo `json:"git"`

	// turn_context
	Model string `json:"model"`

	// response_item: function_call
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`

	// response_item: function_call_output
	Output json.RawMessage `json:"output"`

	// response_item: reasoning
	Summary []SummaryPart `json:"summary"`

	// response_item: message
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`

	// event_msg: agent_message / user_message
	Message string `json:"message"`

	// event_msg: token_count
	Info *TokenInfo `json:"info"`
}

// GitInfo is the repository block on session_meta payloads.
type GitInfo struct {
	Branch        string `json:"branch"`
	RepositoryURL string `json:"repository_url"`
	CommitHash    string `json:"commit_hash"`
}

type SummaryPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TokenInfo carries cumulative and per-request usage on token_count
// events. The per-request block is what gets summed; the cumulative one
// would double count.
type TokenInfo struct {
	TotalTokenUsage TokenCounts `json:"total_token_usage"`
	LastTokenUsage  TokenCounts `json:"last_token_usage"`
}

// TokenCounts is the raw usage block. InputTokens already includes
// cached tokens, per the producer's convention.
type TokenCounts struct {
	InputTokens       int64 `json:"input_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens"`
	OutputTokens      int64 `json:"output_tokens"`
	ReasoningTokens   int64 `json:"reasoning_output_tokens"`
	TotalTokens       int64 `json:"total_tokens"`
}

// FunctionOutput is the JSON shape some function_call_output payloads
// use; others are a bare string.
type FunctionOutput struct {
	Output   string `json:"output"`
	Metadata *struct {
		ExitCode *int `json:"exit_code"`
	} `json:"metadata"`
}
