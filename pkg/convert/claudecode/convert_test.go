package claudecode_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolworks/spool/pkg/convert"
	"github.com/spoolworks/spool/pkg/convert/claudecode"
	"github.com/spoolworks/spool/pkg/unified"
)

func mustRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	Expect(err).NotTo(HaveOccurred())
	return data
}

func userRecord(uuid, ts, text string) claudecode.Record {
	return claudecode.Record{
		Type:      "user",
		UUID:      uuid,
		Timestamp: ts,
		SessionID: "session-1",
		CWD:       "/home/dev/project",
		Message:   &claudecode.RecordMessage{Role: "user", Content: mustRaw(text)},
	}
}

func assistantText(uuid, ts, msgID, text string) claudecode.Record {
	return claudecode.Record{
		Type:      "assistant",
		UUID:      uuid,
		Timestamp: ts,
		SessionID: "session-1",
		Message: &claudecode.RecordMessage{
			ID:      msgID,
			Role:    "assistant",
			Model:   "claude-sonnet-4-5",
			Content: mustRaw([]map[string]any{{"type": "text", "text": text}}),
		},
	}
}

func toolCall(uuid, ts, callID, tool string, input map[string]any) claudecode.Record {
	return claudecode.Record{
		Type:      "assistant",
		UUID:      uuid,
		Timestamp: ts,
		SessionID: "session-1",
		Message: &claudecode.RecordMessage{
			ID:    "msg-" + uuid,
			Role:  "assistant",
			Model: "claude-sonnet-4-5",
			Content: mustRaw([]map[string]any{
				{"type": "tool_use", "id": callID, "name": tool, "input": input},
			}),
		},
	}
}

func toolResult(uuid, ts, callID string, content any, isError *bool) claudecode.Record {
	block := map[string]any{"type": "tool_result", "tool_use_id": callID, "content": content}
	if isError != nil {
		block["is_error"] = *isError
	}
	return claudecode.Record{
		Type:      "user",
		UUID:      uuid,
		Timestamp: ts,
		SessionID: "session-1",
		Message:   &claudecode.RecordMessage{Role: "user", Content: mustRaw([]any{block})},
	}
}

var _ = Describe("Flatten", func() {
	It("orders records by timestamp with uuid tie-break", func() {
		records := []claudecode.Record{
			{UUID: "b", Timestamp: "2026-01-01T00:00:02Z"},
			{UUID: "c", Timestamp: "2026-01-01T00:00:01Z"},
			{UUID: "a", Timestamp: "2026-01-01T00:00:01Z"},
		}
		flat := claudecode.Flatten(records)
		Expect(flat[0].UUID).To(Equal("a"))
		Expect(flat[1].UUID).To(Equal("c"))
		Expect(flat[2].UUID).To(Equal("b"))
	})

	It("drops sidechain records", func() {
		records := []claudecode.Record{
			{UUID: "a", Timestamp: "t1"},
			{UUID: "b", Timestamp: "t2", IsSidechain: true},
		}
		Expect(claudecode.Flatten(records)).To(HaveLen(1))
	})
})

var _ = Describe("Convert", func() {
	var opts convert.Options

	BeforeEach(func() {
		opts = convert.Options{Now: time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)}
	})

	It("returns nil for an empty record set", func() {
		result, err := claudecode.Convert(nil, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(BeNil())
	})

	It("converts a simple exchange", func() {
		records := []claudecode.Record{
			userRecord("u1", "2026-01-01T10:00:00Z", "fix the login bug"),
			assistantText("a1", "2026-01-01T10:00:05Z", "msg-1", "On it."),
		}
		result, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).NotTo(BeNil())

		t := result.Transcript
		Expect(t.ID).To(Equal("session-1"))
		Expect(t.Source).To(Equal("claude-code"))
		Expect(t.MessageCount).To(Equal(2))
		Expect(t.UserMessageCount).To(Equal(1))
		Expect(t.Messages[0].Type).To(Equal(unified.MessageUser))
		Expect(t.Messages[1].Type).To(Equal(unified.MessageAgent))
		Expect(*t.Preview).To(Equal("fix the login bug"))
		Expect(*t.Model).To(Equal("anthropic/claude-sonnet-4-5"))
	})

	It("links results from parallel branches without losing any", func() {
		// Three parallel tool calls whose results each point back at
		// their own call; a parent-chain walk would keep only one.
		records := []claudecode.Record{
			userRecord("u1", "2026-01-01T10:00:00Z", "run the checks"),
			toolCall("a1", "2026-01-01T10:00:01Z", "call-1", "Bash", map[string]any{"command": "go vet"}),
			toolCall("a2", "2026-01-01T10:00:02Z", "call-2", "Bash", map[string]any{"command": "go test"}),
			toolCall("a3", "2026-01-01T10:00:03Z", "call-3", "Bash", map[string]any{"command": "golint"}),
			toolResult("r2", "2026-01-01T10:00:04Z", "call-2", "ok", nil),
			toolResult("r1", "2026-01-01T10:00:05Z", "call-1", "ok", nil),
			toolResult("r3", "2026-01-01T10:00:06Z", "call-3", "ok", nil),
		}
		result, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())

		t := result.Transcript
		Expect(t.ToolCount).To(Equal(3))
		attached := 0
		for _, msg := range t.Messages {
			if msg.Type == unified.MessageToolCall {
				Expect(msg.Output).NotTo(BeNil())
				attached++
			}
		}
		Expect(attached).To(Equal(3))
	})

	It("never overwrites an attached output", func() {
		records := []claudecode.Record{
			toolCall("a1", "2026-01-01T10:00:01Z", "call-1", "Bash", map[string]any{"command": "ls"}),
			toolResult("r1", "2026-01-01T10:00:02Z", "call-1", "first", nil),
			toolResult("r2", "2026-01-01T10:00:03Z", "call-1", "second", nil),
		}
		result, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Transcript.Messages[0].Output).To(Equal("first"))
	})

	It("serializes the shell tool's error flag as a string", func() {
		isErr := true
		records := []claudecode.Record{
			toolCall("a1", "2026-01-01T10:00:01Z", "call-1", "Bash", map[string]any{"command": "false"}),
			toolResult("r1", "2026-01-01T10:00:02Z", "call-1", "Command failed with exit 1", &isErr),
			toolCall("a2", "2026-01-01T10:00:03Z", "call-2", "Read", map[string]any{"file_path": "/x"}),
			toolResult("r2", "2026-01-01T10:00:04Z", "call-2", "contents", nil),
		}
		result, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())

		msgs := result.Transcript.Messages
		Expect(msgs[0].IsError).To(Equal("true"))
		Expect(msgs[0].Error).To(ContainSubstring("Command failed"))
		Expect(msgs[1].IsError).To(Equal(false))
	})

	It("deduplicates repeated user turns and keeps their images", func() {
		png := "iVBORw0KGgoAAAANSUhEUg=="
		bare := userRecord("u1", "2026-01-01T10:00:00Z", "see the screenshot")
		withImage := claudecode.Record{
			Type:      "user",
			UUID:      "u2",
			Timestamp: "2026-01-01T10:00:00Z",
			SessionID: "session-1",
			Message: &claudecode.RecordMessage{
				Role: "user",
				Content: mustRaw([]map[string]any{
					{"type": "text", "text": "see the screenshot"},
					{"type": "image", "source": map[string]any{"type": "base64", "media_type": "image/png", "data": png}},
				}),
			},
		}
		result, err := claudecode.Convert([]claudecode.Record{bare, withImage}, opts)
		Expect(err).NotTo(HaveOccurred())

		t := result.Transcript
		Expect(t.UserMessageCount).To(Equal(1))
		Expect(t.Messages).To(HaveLen(1))
		Expect(t.Messages[0].Images).To(HaveLen(1))
		Expect(result.Blobs).To(HaveLen(1))
	})

	It("deduplicates streamed assistant text", func() {
		records := []claudecode.Record{
			assistantText("a1", "2026-01-01T10:00:00Z", "msg-1", "same text"),
			assistantText("a2", "2026-01-01T10:00:00Z", "msg-1", "same text"),
		}
		result, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Transcript.Messages).To(HaveLen(1))
	})

	It("drops meta records and noise-only user turns", func() {
		records := []claudecode.Record{
			{Type: "user", UUID: "u1", Timestamp: "t1", IsMeta: true,
				Message: &claudecode.RecordMessage{Role: "user", Content: mustRaw("meta")}},
			userRecord("u2", "t2", "$ npm install\nnpm WARN deprecated"),
			userRecord("u3", "t3", "why is the build red?"),
		}
		result, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Transcript.UserMessageCount).To(Equal(1))
		Expect(result.Transcript.Messages[0].Text).To(Equal("why is the build red?"))
	})

	It("turns compaction summaries into their own message type", func() {
		records := []claudecode.Record{
			{Type: "user", UUID: "u1", Timestamp: "t1", IsCompactSummary: true, SessionID: "session-1",
				Message: &claudecode.RecordMessage{Role: "user", Content: mustRaw("earlier, the user asked for X")}},
		}
		result, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Transcript.Messages[0].Type).To(Equal(unified.MessageCompaction))
	})

	It("pairs command envelopes across records", func() {
		records := []claudecode.Record{
			userRecord("u1", "t1", "<command-name>/status</command-name>"),
			userRecord("u2", "t2", "<local-command-stdout>clean tree</local-command-stdout>"),
		}
		result, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())

		msgs := result.Transcript.Messages
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Type).To(Equal(unified.MessageCommand))
		Expect(msgs[0].Command).To(Equal("/status"))
		Expect(msgs[0].Stdout).To(Equal("clean tree"))
		Expect(result.Transcript.UserMessageCount).To(BeZero())
	})

	It("suppresses /clear envelopes entirely", func() {
		records := []claudecode.Record{
			userRecord("u1", "t1", "<command-name>/clear</command-name>"),
			userRecord("u2", "t2", "<local-command-stdout></local-command-stdout>"),
		}
		result, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Transcript.Messages).To(BeEmpty())
		Expect(result.Transcript.MessageCount).To(BeZero())
	})

	It("deduplicates usage by message and request id", func() {
		usage := &claudecode.Usage{InputTokens: 100, OutputTokens: 10, CacheReadInputTokens: 40}
		mk := func(uuid string) claudecode.Record {
			return claudecode.Record{
				Type: "assistant", UUID: uuid, Timestamp: "t-" + uuid,
				SessionID: "session-1", RequestID: "req-1",
				Message: &claudecode.RecordMessage{
					ID: "msg-1", Role: "assistant", Model: "claude-sonnet-4-5",
					Content: mustRaw([]map[string]any{{"type": "text", "text": "answer " + uuid}}),
					Usage:   usage,
				},
			}
		}
		result, err := claudecode.Convert([]claudecode.Record{mk("a1"), mk("a2")}, opts)
		Expect(err).NotTo(HaveOccurred())

		t := result.Transcript
		Expect(t.TokenUsage.Input).To(Equal(int64(140)))
		Expect(t.TokenUsage.CachedInput).To(Equal(int64(40)))
		Expect(t.BlendedTokens).To(Equal(int64(110)))
	})

	It("produces identical output when run twice over the same records", func() {
		records := []claudecode.Record{
			userRecord("u1", "2026-01-01T10:00:00Z", "update the readme"),
			toolCall("a1", "2026-01-01T10:00:01Z", "call-1", "Edit", map[string]any{
				"file_path":  "/home/dev/project/README.md",
				"old_string": "old title",
				"new_string": "new title",
			}),
			toolResult("r1", "2026-01-01T10:00:02Z", "call-1", "done", nil),
			assistantText("a2", "2026-01-01T10:00:03Z", "msg-2", "Updated."),
		}

		first, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())
		second, err := claudecode.Convert(records, opts)
		Expect(err).NotTo(HaveOccurred())

		a, err := json.Marshal(first.Transcript)
		Expect(err).NotTo(HaveOccurred())
		b, err := json.Marshal(second.Transcript)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(a)).To(Equal(string(b)))
	})

	It("derives git context and cwd from the records", func() {
		r := userRecord("u1", "t1", "check the branch")
		r.GitBranch = "feature/login"
		result, err := claudecode.Convert([]claudecode.Record{r}, opts)
		Expect(err).NotTo(HaveOccurred())

		t := result.Transcript
		Expect(t.CWD).To(Equal("/home/dev/project"))
		Expect(t.Git).NotTo(BeNil())
		Expect(t.Git.Branch).To(Equal("feature/login"))
		Expect(t.Git.Repo).To(Equal("project"))
	})
})
