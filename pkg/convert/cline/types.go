// Package cline converts Cline ui_messages logs into the unified
// document. Cline persists a JSON array of UI events with millisecond
// timestamps; tool and API details ride inside JSON-encoded text
// sub-payloads.
package cline

import "encoding/json"

// UIMessage is one element of the ui_messages array.
type UIMessage struct {
	Type      string   `json:"type"` // "say" or "ask"
	Say       string   `json:"say,omitempty"`
	Ask       string   `json:"ask,omitempty"`
	Text      string   `json:"text"`
	Images    []string `json:"images,omitempty"`
	Timestamp int64    `json:"ts"`
}

// ToolPayload is the JSON-encoded text of a "tool" event.
type ToolPayload struct {
	Tool    string `json:"tool"`
	Path    string `json:"path"`
	Diff    string `json:"diff"`
	Content string `json:"content"`
	Regex   string `json:"regex"`
	Pattern string `json:"filePattern"`
}

// APIRequestPayload is the JSON-encoded text of an "api_req_started"
// event, carrying that request's usage and cost.
type APIRequestPayload struct {
	TokensIn   int64   `json:"tokensIn"`
	TokensOut  int64   `json:"tokensOut"`
	CacheReads int64   `json:"cacheReads"`
	CacheWrite int64   `json:"cacheWrites"`
	Cost       float64 `json:"cost"`
	Model      string  `json:"model"`
	RequestID  string  `json:"requestId"`
}

// decodeText unmarshals a JSON-encoded text sub-payload, tolerating
// plain-text events.
func decodeText[T any](text string) (T, bool) {
	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}
