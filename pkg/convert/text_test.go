package convert_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolworks/spool/pkg/convert"
)

var _ = Describe("KeepLine", func() {
	It("keeps ordinary conversational lines", func() {
		Expect(convert.KeepLine("the login page is broken")).To(BeTrue())
	})

	It("drops blanks and status strings", func() {
		Expect(convert.KeepLine("")).To(BeFalse())
		Expect(convert.KeepLine("[Request interrupted by user]")).To(BeFalse())
		Expect(convert.KeepLine("No response requested.")).To(BeFalse())
	})

	It("drops envelope tags and caveats", func() {
		Expect(convert.KeepLine("<command-name>/clear</command-name>")).To(BeFalse())
		Expect(convert.KeepLine("Caveat: the messages below were generated")).To(BeFalse())
	})

	It("drops pasted command output", func() {
		Expect(convert.KeepLine("npm ERR! code ELIFECYCLE")).To(BeFalse())
		Expect(convert.KeepLine("$ make build")).To(BeFalse())
		Expect(convert.KeepLine("error: cannot find module")).To(BeFalse())
	})

	It("keeps output-looking lines that carry a prompt cue", func() {
		Expect(convert.KeepLine("git rebase keeps failing, can you help?")).To(BeTrue())
		Expect(convert.KeepLine("fix the flaky test in ci")).To(BeTrue())
		Expect(convert.KeepLine("make this function faster please")).To(BeTrue())
	})
})

var _ = Describe("PreviewText", func() {
	It("keeps at most the preview line budget", func() {
		raw := "one\ntwo\nthree\nfour\nfive\nsix\nseven"
		lines := convert.MeaningfulLines(raw, convert.MaxPreviewLines)
		Expect(lines).To(HaveLen(convert.MaxPreviewLines))
		Expect(convert.PreviewText(raw)).To(Equal("one\ntwo\nthree\nfour\nfive"))
	})

	It("filters noise before joining", func() {
		raw := "$ npm test\n\nwhy does this test fail?\nnpm ERR! exit 1"
		Expect(convert.PreviewText(raw)).To(Equal("why does this test fail?"))
	})

	It("is empty when nothing survives", func() {
		Expect(convert.PreviewText("$ ls\n# comment\n")).To(BeEmpty())
	})
})
