package claudecode_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/convert/claudecode"
)

var _ = Describe("ParseFile", func() {
	writeFile := func(name, content string) string {
		path := filepath.Join(GinkgoT().TempDir(), name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	It("parses JSON-Lines transcripts", func() {
		path := writeFile("session.jsonl", `{"type":"user","uuid":"u1","timestamp":"t1"}
{"type":"assistant","uuid":"a1","timestamp":"t2"}
`)
		records, err := claudecode.ParseFile(path, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].UUID).To(Equal("u1"))
	})

	It("parses a single JSON array of records", func() {
		path := writeFile("session.json", `[{"type":"user","uuid":"u1"},{"type":"assistant","uuid":"a1"}]`)
		records, err := claudecode.ParseFile(path, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
	})

	It("skips malformed lines instead of failing", func() {
		path := writeFile("session.jsonl", `{"type":"user","uuid":"u1"}
this is not json
{"type":"user","uuid":"u2"}
`)
		records, err := claudecode.ParseFile(path, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
	})

	It("skips blank lines", func() {
		path := writeFile("session.jsonl", "\n{\"type\":\"user\",\"uuid\":\"u1\"}\n\n")
		records, err := claudecode.ParseFile(path, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
	})

	It("fails on a missing file", func() {
		_, err := claudecode.ParseFile("/nonexistent.jsonl", zap.NewNop())
		Expect(err).To(HaveOccurred())
	})
})
