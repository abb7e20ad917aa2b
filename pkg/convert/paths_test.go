package convert_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolworks/spool/pkg/convert"
)

var _ = Describe("RelativizePath", func() {
	const cwd = "/home/dev/project"

	It("rewrites paths under cwd", func() {
		Expect(convert.RelativizePath(cwd, "/home/dev/project/src/main.go")).To(Equal("./src/main.go"))
	})

	It("maps cwd itself to a dot", func() {
		Expect(convert.RelativizePath(cwd, cwd)).To(Equal("."))
	})

	It("leaves paths outside cwd alone", func() {
		Expect(convert.RelativizePath(cwd, "/etc/hosts")).To(Equal("/etc/hosts"))
		Expect(convert.RelativizePath(cwd, "/home/dev/project-other/x")).To(Equal("/home/dev/project-other/x"))
	})

	It("leaves relative paths and empty inputs alone", func() {
		Expect(convert.RelativizePath(cwd, "src/main.go")).To(Equal("src/main.go"))
		Expect(convert.RelativizePath("", "/home/dev/project/src")).To(Equal("/home/dev/project/src"))
	})
})

var _ = Describe("RelativizeValue", func() {
	It("rewrites strings nested in maps and arrays", func() {
		in := map[string]any{
			"file":  "/home/dev/project/a.go",
			"files": []any{"/home/dev/project/b.go", "/tmp/out"},
			"count": 2,
		}
		out := convert.RelativizeValue(in, "/home/dev/project").(map[string]any)
		Expect(out["file"]).To(Equal("./a.go"))
		Expect(out["files"].([]any)[0]).To(Equal("./b.go"))
		Expect(out["files"].([]any)[1]).To(Equal("/tmp/out"))
		Expect(out["count"]).To(Equal(2))
	})
})
