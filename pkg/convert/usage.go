package convert

import (
	"github.com/spoolworks/spool/pkg/pricing"
	"github.com/spoolworks/spool/pkg/unified"
)

// RawUsage is one usage-bearing record's raw counters before they are
// folded into the canonical TokenUsage shape. CacheWrite only matters
// for pricing; the canonical shape folds both cache counters into
// CachedInput-under-Input.
type RawUsage struct {
	Input      int64
	CacheWrite int64
	CacheRead  int64
	Output     int64
	Reasoning  int64
}

// TokenUsage folds the raw counters into the canonical shape: Input
// includes cached tokens (cached is a subset, never added twice).
func (r RawUsage) TokenUsage() unified.TokenUsage {
	input := r.Input + r.CacheWrite + r.CacheRead
	u := unified.TokenUsage{
		Input:       input,
		CachedInput: r.CacheRead,
		Output:      r.Output,
		Reasoning:   r.Reasoning,
	}
	u.Total = u.Input + u.Output + u.Reasoning
	return u
}

// UsageAccumulator sums usage-bearing records into transcript totals, a
// per-model breakdown, and a running USD cost, deduplicating records a
// producer logged twice.
type UsageAccumulator struct {
	table pricing.Table

	seen       map[string]struct{}
	total      unified.TokenUsage
	perModel   map[string]*unified.TokenUsage
	modelOrder []string
	cost       float64
}

func NewUsageAccumulator(table pricing.Table) *UsageAccumulator {
	return &UsageAccumulator{
		table:    table,
		seen:     make(map[string]struct{}),
		perModel: make(map[string]*unified.TokenUsage),
	}
}

// Add folds one record's usage in. The dedup key is (message id,
// request id) when both are present, else whichever is present, else
// the record id; this is what prevents double counting when a producer
// logs the same completion twice. Returns false when the record was a
// duplicate.
func (a *UsageAccumulator) Add(model, messageID, requestID, recordID string, raw RawUsage) bool {
	key := dedupKey(messageID, requestID, recordID)
	if key != "" {
		if _, dup := a.seen[key]; dup {
			return false
		}
		a.seen[key] = struct{}{}
	}

	usage := raw.TokenUsage()
	a.total.Add(usage)

	name := unified.NormalizeModel(model)
	if name != "" {
		entry, ok := a.perModel[name]
		if !ok {
			entry = &unified.TokenUsage{}
			a.perModel[name] = entry
			a.modelOrder = append(a.modelOrder, name)
		}
		entry.Add(usage)
	}

	if rate, ok := pricing.Resolve(a.table, model); ok {
		a.cost += rate.Cost(raw.Input, raw.CacheWrite, raw.CacheRead, raw.Output)
	}
	return true
}

// Total returns the transcript-wide usage sum.
func (a *UsageAccumulator) Total() unified.TokenUsage {
	return a.total
}

// PerModel returns the per-model breakdown in first-seen order.
func (a *UsageAccumulator) PerModel() []unified.ModelUsage {
	out := make([]unified.ModelUsage, 0, len(a.modelOrder))
	for _, name := range a.modelOrder {
		out = append(out, unified.ModelUsage{Model: name, Usage: *a.perModel[name]})
	}
	return out
}

// Cost returns the accumulated USD total.
func (a *UsageAccumulator) Cost() float64 {
	return a.cost
}

// Blended returns the cache-discounted token figure for the whole
// transcript.
func (a *UsageAccumulator) Blended() int64 {
	return a.total.Blended()
}

func dedupKey(messageID, requestID, recordID string) string {
	switch {
	case messageID != "" && requestID != "":
		return messageID + "|" + requestID
	case messageID != "":
		return messageID
	case requestID != "":
		return requestID
	default:
		return recordID
	}
}
