package pricing_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolworks/spool/pkg/pricing"
)

var _ = Describe("Resolve", func() {
	table := pricing.Default()

	It("hits an exact provider-qualified name", func() {
		rate, ok := pricing.Resolve(table, "anthropic/claude-sonnet-4.5")
		Expect(ok).To(BeTrue())
		Expect(rate.Input).To(Equal(3.00))
	})

	It("qualifies bare names with provider prefixes", func() {
		rate, ok := pricing.Resolve(table, "gpt-5")
		Expect(ok).To(BeTrue())
		Expect(rate.Output).To(Equal(10.00))
	})

	It("strips date suffixes before looking up", func() {
		rate, ok := pricing.Resolve(table, "claude-sonnet-4-5-20250929")
		Expect(ok).To(BeTrue())
		Expect(rate.Input).To(Equal(3.00))

		rate, ok = pricing.Resolve(table, "gpt-4o-2024-08-06")
		Expect(ok).To(BeTrue())
		Expect(rate.Input).To(Equal(2.50))
	})

	It("falls back to a substring match", func() {
		rate, ok := pricing.Resolve(table, "claude-3-opus-latest")
		Expect(ok).To(BeTrue())
		Expect(rate.Input).To(Equal(15.00))
	})

	It("misses unknown models without erroring", func() {
		_, ok := pricing.Resolve(table, "acme/turbo-9000")
		Expect(ok).To(BeFalse())
	})

	It("misses the empty name", func() {
		_, ok := pricing.Resolve(table, "")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Cost", func() {
	It("prices each component at its base rate below the threshold", func() {
		rate := pricing.Rate{Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30}
		cost := rate.Cost(1_000_000, 0, 0, 100_000)
		Expect(cost).To(BeNumerically("~", 3.00+1.50, 1e-9))
	})

	It("splits a component across the tier threshold", func() {
		above := 6.00
		rate := pricing.Rate{Input: 3.00, InputAbove: &above}
		// 200k at $3/M plus 50k at $6/M.
		cost := rate.Cost(250_000, 0, 0, 0)
		Expect(cost).To(BeNumerically("~", 0.60+0.30, 1e-9))
	})

	It("charges the base rate for the full count when no tier exists", func() {
		rate := pricing.Rate{Input: 3.00}
		cost := rate.Cost(250_000, 0, 0, 0)
		Expect(cost).To(BeNumerically("~", 0.75, 1e-9))
	})

	It("prices cache reads and writes separately", func() {
		rate := pricing.Rate{Input: 3.00, CacheWrite: 3.75, CacheRead: 0.30}
		cost := rate.Cost(0, 1_000_000, 2_000_000, 0)
		Expect(cost).To(BeNumerically("~", 3.75+0.60, 1e-9))
	})

	It("contributes nothing for zero counts", func() {
		rate := pricing.Rate{Input: 3.00, Output: 15.00}
		Expect(rate.Cost(0, 0, 0, 0)).To(BeZero())
	})
})

var _ = Describe("Load", func() {
	It("returns the defaults for an empty path", func() {
		table, err := pricing.Load("")
		Expect(err).NotTo(HaveOccurred())
		Expect(table).To(HaveKey("anthropic/claude-opus-4.6"))
	})

	It("merges TOML overrides on top of the defaults", func() {
		path := filepath.Join(GinkgoT().TempDir(), "pricing.toml")
		content := `
["anthropic/claude-sonnet-4.5"]
input = 1.00
output = 2.00

["acme/turbo"]
input = 0.10
output = 0.20
`
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

		table, err := pricing.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(table["anthropic/claude-sonnet-4.5"].Input).To(Equal(1.00))
		Expect(table["acme/turbo"].Output).To(Equal(0.20))
		// Untouched entries survive the merge.
		Expect(table["openai/gpt-5"].Input).To(Equal(1.25))
	})

	It("fails on an unreadable path", func() {
		_, err := pricing.Load("/nonexistent/pricing.toml")
		Expect(err).To(HaveOccurred())
	})
})
