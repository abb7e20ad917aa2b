package cline_test

import (
	"encoding/base64"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolworks/spool/pkg/convert"
	"github.com/spoolworks/spool/pkg/convert/cline"
	"github.com/spoolworks/spool/pkg/unified"
)

var _ = Describe("Convert", func() {
	var opts convert.Options

	BeforeEach(func() {
		opts = convert.Options{
			Now: time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC),
			CWD: "/home/dev/demo",
		}
	})

	It("returns nil for an empty event set", func() {
		result, err := cline.Convert(nil, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(BeNil())
	})

	It("converts say and ask events into messages", func() {
		events := []cline.UIMessage{
			{Type: "say", Say: "user_feedback", Text: "speed up the parser", Timestamp: 1_700_000_000_000},
			{Type: "say", Say: "reasoning", Text: "profiling first", Timestamp: 1_700_000_001_000},
			{Type: "say", Say: "text", Text: "The hot loop is in tokenize.", Timestamp: 1_700_000_002_000},
			{Type: "ask", Ask: "followup", Text: "Should I also cache results?", Timestamp: 1_700_000_003_000},
		}
		result, err := cline.Convert(events, opts)
		Expect(err).NotTo(HaveOccurred())

		t := result.Transcript
		Expect(t.Source).To(Equal("cline"))
		Expect(t.MessageCount).To(Equal(4))
		Expect(t.UserMessageCount).To(Equal(1))
		Expect(t.Messages[0].Type).To(Equal(unified.MessageUser))
		Expect(t.Messages[1].Type).To(Equal(unified.MessageThinking))
		Expect(t.Messages[2].Type).To(Equal(unified.MessageAgent))
		Expect(t.Messages[3].Type).To(Equal(unified.MessageAgent))
		Expect(*t.Preview).To(Equal("speed up the parser"))
	})

	It("stamps millisecond timestamps as ISO strings and ids", func() {
		events := []cline.UIMessage{
			{Type: "say", Say: "text", Text: "hello", Timestamp: 1_700_000_000_000},
		}
		result, err := cline.Convert(events, opts)
		Expect(err).NotTo(HaveOccurred())

		msg := result.Transcript.Messages[0]
		Expect(msg.ID).To(Equal("1700000000000"))
		Expect(msg.Timestamp).To(Equal("2023-11-14T22:13:20.000Z"))
		Expect(result.Transcript.ID).To(Equal("1700000000000"))
	})

	It("decodes tool events with inline output", func() {
		events := []cline.UIMessage{
			{Type: "say", Say: "tool", Timestamp: 1,
				Text: `{"tool":"editedExistingFile","path":"/home/dev/demo/a.go","diff":"-x\n+y"}`},
		}
		result, err := cline.Convert(events, opts)
		Expect(err).NotTo(HaveOccurred())

		msg := result.Transcript.Messages[0]
		Expect(msg.Type).To(Equal(unified.MessageToolCall))
		Expect(*msg.Tool).To(Equal("editedExistingFile"))
		Expect(msg.Input["path"]).To(Equal("./a.go"))
		Expect(msg.Output).To(Equal(map[string]any{"diff": "-x\n+y"}))
		Expect(msg.IsError).To(Equal(false))
		Expect(result.Transcript.ToolCount).To(Equal(1))
		Expect(result.Transcript.FilesChanged).To(Equal(1))
		Expect(result.Transcript.LinesModified).To(Equal(1))
		Expect(result.Transcript.LinesAdded).To(BeZero())
	})

	It("pairs command output with the preceding command", func() {
		events := []cline.UIMessage{
			{Type: "ask", Ask: "command", Text: "go build ./...", Timestamp: 1},
			{Type: "say", Say: "command_output", Text: "ok\n", Timestamp: 2},
			{Type: "say", Say: "command_output", Text: "done", Timestamp: 3},
		}
		result, err := cline.Convert(events, opts)
		Expect(err).NotTo(HaveOccurred())

		msgs := result.Transcript.Messages
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Type).To(Equal(unified.MessageCommand))
		Expect(msgs[0].Command).To(Equal("go build ./..."))
		Expect(msgs[0].Stdout).To(Equal("ok\ndone"))
	})

	It("ignores command output with no preceding command", func() {
		events := []cline.UIMessage{
			{Type: "say", Say: "command_output", Text: "orphan", Timestamp: 1},
			{Type: "say", Say: "text", Text: "hi", Timestamp: 2},
		}
		result, err := cline.Convert(events, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Transcript.Messages).To(HaveLen(1))
	})

	It("extracts data-URL images from user feedback", func() {
		png := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
		events := []cline.UIMessage{
			{Type: "say", Say: "user_feedback", Text: "see attached", Timestamp: 1,
				Images: []string{"data:image/png;base64," + png}},
		}
		result, err := cline.Convert(events, opts)
		Expect(err).NotTo(HaveOccurred())

		msg := result.Transcript.Messages[0]
		Expect(msg.Images).To(HaveLen(1))
		Expect(msg.Images[0].MediaType).To(Equal("image/png"))
		Expect(result.Blobs).To(HaveLen(1))
	})

	It("accumulates usage from api request events", func() {
		events := []cline.UIMessage{
			{Type: "say", Say: "api_req_started", Timestamp: 1,
				Text: `{"tokensIn":60,"tokensOut":10,"cacheReads":40,"cacheWrites":0,"model":"claude-sonnet-4-5","requestId":"req-1"}`},
			{Type: "say", Say: "api_req_started", Timestamp: 2,
				Text: `{"tokensIn":60,"tokensOut":10,"cacheReads":40,"cacheWrites":0,"model":"claude-sonnet-4-5","requestId":"req-1"}`},
			{Type: "say", Say: "text", Text: "done", Timestamp: 3},
		}
		result, err := cline.Convert(events, opts)
		Expect(err).NotTo(HaveOccurred())

		t := result.Transcript
		// The duplicate request id counts once.
		Expect(t.TokenUsage.Input).To(Equal(int64(100)))
		Expect(t.TokenUsage.CachedInput).To(Equal(int64(40)))
		Expect(t.BlendedTokens).To(Equal(int64(70)))
		Expect(*t.Model).To(Equal("anthropic/claude-sonnet-4-5"))
		Expect(t.Messages[0].Model).To(Equal("claude-sonnet-4-5"))
	})

	It("prefers producer-reported request costs over the pricing table", func() {
		events := []cline.UIMessage{
			{Type: "say", Say: "api_req_started", Timestamp: 1,
				Text: `{"tokensIn":60,"tokensOut":10,"cost":0.0125,"model":"claude-sonnet-4-5","requestId":"req-1"}`},
			{Type: "say", Say: "api_req_started", Timestamp: 2,
				Text: `{"tokensIn":60,"tokensOut":10,"cost":0.0125,"model":"claude-sonnet-4-5","requestId":"req-1"}`},
			{Type: "say", Say: "api_req_started", Timestamp: 3,
				Text: `{"tokensIn":30,"tokensOut":5,"cost":0.0075,"model":"claude-sonnet-4-5","requestId":"req-2"}`},
			{Type: "say", Say: "text", Text: "done", Timestamp: 4},
		}
		result, err := cline.Convert(events, opts)
		Expect(err).NotTo(HaveOccurred())

		// The duplicate request's cost counts once, like its tokens.
		Expect(result.Transcript.CostUSD).To(BeNumerically("~", 0.02, 1e-9))
	})

	It("falls back to a repo name derived from cwd", func() {
		events := []cline.UIMessage{
			{Type: "say", Say: "text", Text: "hi", Timestamp: 1},
		}
		result, err := cline.Convert(events, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Transcript.Git).NotTo(BeNil())
		Expect(result.Transcript.Git.Repo).To(Equal("demo"))
	})
})
