package unified

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// The envelope schema is strict: every field is required and unknown
// fields are rejected. Message shapes stay permissive so that new,
// unrecognized tools never break the pipeline; only the final envelope
// acts as the gate.

var (
	schemaOnce sync.Once
	schema     *jsonschema.Resolved
	schemaErr  error
)

func envelopeSchema() (*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		s := buildEnvelopeSchema()
		schema, schemaErr = s.Resolve(nil)
	})
	return schema, schemaErr
}

// Validate checks an assembled transcript against the canonical
// envelope schema. A failure here is an engine bug, not an input
// problem, so callers must propagate it rather than swallow it.
func Validate(t *Transcript) error {
	if t == nil {
		return fmt.Errorf("validate: nil transcript")
	}
	if t.MessageCount != len(t.Messages) {
		return fmt.Errorf("validate: messageCount %d != len(messages) %d", t.MessageCount, len(t.Messages))
	}

	resolved, err := envelopeSchema()
	if err != nil {
		return fmt.Errorf("resolving transcript schema: %w", err)
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling transcript: %w", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("round-tripping transcript: %w", err)
	}

	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("transcript failed schema validation: %w", err)
	}
	return nil
}

func buildEnvelopeSchema() *jsonschema.Schema {
	str := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }
	nullableStr := func() *jsonschema.Schema { return &jsonschema.Schema{Types: []string{"string", "null"}} }
	number := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "number"} }
	nonNegative := func() *jsonschema.Schema {
		zero := 0.0
		return &jsonschema.Schema{Type: "number", Minimum: &zero}
	}

	// Every subschema helper is a factory: Resolve requires the schema
	// to form a tree, so no node may appear at two positions.
	usage := func() *jsonschema.Schema {
		return &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"input":       nonNegative(),
				"cachedInput": nonNegative(),
				"output":      nonNegative(),
				"reasoning":   nonNegative(),
				"total":       nonNegative(),
			},
			Required: []string{"input", "cachedInput", "output", "reasoning", "total"},
		}
	}

	modelUsage := &jsonschema.Schema{
		Type: "array",
		Items: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"model": str(),
				"usage": usage(),
			},
			Required: []string{"model", "usage"},
		},
	}

	git := &jsonschema.Schema{
		Types: []string{"object", "null"},
		Properties: map[string]*jsonschema.Schema{
			"dir":    str(),
			"branch": str(),
			"repo":   str(),
		},
	}

	// Deliberately permissive: only the variant tag is constrained.
	// Tool input/output shapes are a moving target across producers.
	message := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"type": {
				Type: "string",
				Enum: []any{
					string(MessageUser),
					string(MessageAgent),
					string(MessageThinking),
					string(MessageToolCall),
					string(MessageCommand),
					string(MessageCompaction),
				},
			},
		},
		Required: []string{"type"},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"v":                {Type: "integer"},
			"id":               str(),
			"source":           str(),
			"timestamp":        str(),
			"preview":          nullableStr(),
			"model":            nullableStr(),
			"clientVersion":    nullableStr(),
			"blendedTokens":    nonNegative(),
			"costUsd":          number(),
			"messageCount":     nonNegative(),
			"toolCount":        nonNegative(),
			"userMessageCount": nonNegative(),
			"filesChanged":     nonNegative(),
			"linesAdded":       nonNegative(),
			"linesRemoved":     nonNegative(),
			"linesModified":    nonNegative(),
			"tokenUsage":       usage(),
			"modelUsage":       modelUsage,
			"git":              git,
			"cwd":              str(),
			"messages":         {Type: "array", Items: message},
		},
		Required: []string{
			"v", "id", "source", "timestamp", "preview", "model",
			"clientVersion", "blendedTokens", "costUsd", "messageCount",
			"toolCount", "userMessageCount", "filesChanged", "linesAdded",
			"linesRemoved", "linesModified", "tokenUsage", "modelUsage",
			"git", "cwd", "messages",
		},
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}
