// Package unified defines the canonical, producer-agnostic transcript
// document that every converter emits, plus the schema gate that
// validates assembled output before it is handed back to callers.
package unified

import "strings"

// FormatVersion is the current unified transcript format version.
const FormatVersion = 1

// DefaultProvider is prefixed onto model names that arrive without a
// provider qualifier.
const DefaultProvider = "anthropic"

// TokenUsage holds the five token counters tracked per transcript and
// per model. CachedInput is a subset of Input, never added on top of it,
// and Total is always Input + Output + Reasoning.
type TokenUsage struct {
	Input       int64 `json:"input"`
	CachedInput int64 `json:"cachedInput"`
	Output      int64 `json:"output"`
	Reasoning   int64 `json:"reasoning"`
	Total       int64 `json:"total"`
}

// Add accumulates another usage block into u and keeps Total consistent.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.CachedInput += other.CachedInput
	u.Output += other.Output
	u.Reasoning += other.Reasoning
	u.Total = u.Input + u.Output + u.Reasoning
}

// Blended nets out cached input tokens: cached tokens were already paid
// for at the discounted rate, so they are excluded from the human-facing
// figure.
func (u TokenUsage) Blended() int64 {
	return max(u.Input-u.CachedInput, 0) + u.Output + u.Reasoning
}

// ModelUsage pairs a normalized model name with its accumulated usage.
type ModelUsage struct {
	Model string     `json:"model"`
	Usage TokenUsage `json:"usage"`
}

// GitContext describes the repository a session ran in. The whole
// struct is nullable on the transcript; it is derived once per
// transcript, never per message.
type GitContext struct {
	Dir    string `json:"dir"`
	Branch string `json:"branch"`
	Repo   string `json:"repo"`
}

// Transcript is the assembled envelope. MessageCount always equals
// len(Messages).
type Transcript struct {
	V                int          `json:"v"`
	ID               string       `json:"id"`
	Source           string       `json:"source"`
	Timestamp        string       `json:"timestamp"`
	Preview          *string      `json:"preview"`
	Model            *string      `json:"model"`
	ClientVersion    *string      `json:"clientVersion"`
	BlendedTokens    int64        `json:"blendedTokens"`
	CostUSD          float64      `json:"costUsd"`
	MessageCount     int          `json:"messageCount"`
	ToolCount        int          `json:"toolCount"`
	UserMessageCount int          `json:"userMessageCount"`
	FilesChanged     int          `json:"filesChanged"`
	LinesAdded       int          `json:"linesAdded"`
	LinesRemoved     int          `json:"linesRemoved"`
	LinesModified    int          `json:"linesModified"`
	TokenUsage       TokenUsage   `json:"tokenUsage"`
	ModelUsage       []ModelUsage `json:"modelUsage"`
	Git              *GitContext  `json:"git"`
	CWD              string       `json:"cwd"`
	Messages         []Message    `json:"messages"`
}

// NormalizeModel qualifies a bare model name with a provider prefix.
// Names that already carry a "provider/" qualifier pass through.
func NormalizeModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return model
	}
	if strings.Contains(model, "/") {
		return model
	}
	return DefaultProvider + "/" + model
}
