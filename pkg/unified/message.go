package unified

// MessageType tags the unified message variants.
type MessageType string

const (
	MessageUser       MessageType = "user"
	MessageAgent      MessageType = "agent"
	MessageThinking   MessageType = "thinking"
	MessageToolCall   MessageType = "tool-call"
	MessageCommand    MessageType = "command"
	MessageCompaction MessageType = "compaction-summary"
)

// ImageRef points at a content-addressed blob extracted from a message.
type ImageRef struct {
	Sha256    string `json:"sha256"`
	MediaType string `json:"mediaType"`
}

// Message is the canonical output unit, a tagged variant over user,
// agent, thinking, tool-call, command and compaction-summary shapes.
// Only the fields relevant to a variant are populated.
//
// IsError is a bool for every tool except the shell tool, whose error
// flag has historically been serialized as the string "true"/"false".
// That shape is preserved as-is for compatibility.
type Message struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Model     string      `json:"model,omitempty"`

	// user / agent / thinking / compaction-summary
	Text   string     `json:"text,omitempty"`
	Images []ImageRef `json:"images,omitempty"`

	// tool-call
	Tool    *string        `json:"tool,omitempty"`
	Input   map[string]any `json:"input,omitempty"`
	Output  any            `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
	IsError any            `json:"isError,omitempty"`

	// command
	Command string `json:"command,omitempty"`
	Args    string `json:"args,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
}
