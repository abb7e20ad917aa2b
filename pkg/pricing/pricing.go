// Package pricing maps per-model token usage to USD under tiered,
// cache-aware rates. Rates are expressed per million tokens.
package pricing

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// TierThreshold is the token count at which the above-threshold rate
// kicks in for a single request's component.
const TierThreshold = 200_000

// perMillion converts a token count to the rate's unit.
const perMillion = 1_000_000.0

// Rate holds per-million-token prices for one model. The *Above fields
// are optional; when nil the base rate applies to the full token count
// regardless of the threshold.
type Rate struct {
	Input      float64 `toml:"input" json:"input"`
	Output     float64 `toml:"output" json:"output"`
	CacheWrite float64 `toml:"cache_write" json:"cacheWrite"`
	CacheRead  float64 `toml:"cache_read" json:"cacheRead"`

	InputAbove      *float64 `toml:"input_above" json:"inputAbove,omitempty"`
	OutputAbove     *float64 `toml:"output_above" json:"outputAbove,omitempty"`
	CacheWriteAbove *float64 `toml:"cache_write_above" json:"cacheWriteAbove,omitempty"`
	CacheReadAbove  *float64 `toml:"cache_read_above" json:"cacheReadAbove,omitempty"`
}

// Table maps a provider-qualified model name to its rate.
type Table map[string]Rate

// providerPrefixes is the fixed qualifier list tried when resolving a
// bare model name against the table.
var providerPrefixes = []string{"anthropic/", "openai/", "google/", "xai/"}

func f(v float64) *float64 { return &v }

// Default returns the built-in pricing table.
func Default() Table {
	return Table{
		"anthropic/claude-opus-4.6":   {Input: 5.00, Output: 25.00, CacheRead: 0.50, CacheWrite: 6.25},
		"anthropic/claude-opus-4.5":   {Input: 5.00, Output: 25.00, CacheRead: 0.50, CacheWrite: 6.25},
		"anthropic/claude-opus-4.1":   {Input: 15.00, Output: 75.00, CacheRead: 1.50, CacheWrite: 18.75},
		"anthropic/claude-opus-4":     {Input: 15.00, Output: 75.00, CacheRead: 1.50, CacheWrite: 18.75},
		"anthropic/claude-sonnet-4.5": {Input: 3.00, Output: 15.00, CacheRead: 0.30, CacheWrite: 3.75, InputAbove: f(6.00), OutputAbove: f(22.50), CacheReadAbove: f(0.60), CacheWriteAbove: f(7.50)},
		"anthropic/claude-sonnet-4":   {Input: 3.00, Output: 15.00, CacheRead: 0.30, CacheWrite: 3.75, InputAbove: f(6.00), OutputAbove: f(22.50), CacheReadAbove: f(0.60), CacheWriteAbove: f(7.50)},
		"anthropic/claude-haiku-4.5":  {Input: 1.00, Output: 5.00, CacheRead: 0.10, CacheWrite: 1.25},
		"anthropic/claude-3.5-sonnet": {Input: 3.00, Output: 15.00, CacheRead: 0.30, CacheWrite: 3.75},
		"anthropic/claude-3.5-haiku":  {Input: 0.80, Output: 4.00, CacheRead: 0.08, CacheWrite: 1.00},
		"anthropic/claude-3-opus":     {Input: 15.00, Output: 75.00, CacheRead: 1.50, CacheWrite: 18.75},
		"openai/gpt-4o":               {Input: 2.50, Output: 10.00, CacheRead: 1.25, CacheWrite: 2.50},
		"openai/gpt-4o-mini":          {Input: 0.15, Output: 0.60, CacheRead: 0.075, CacheWrite: 0.15},
		"openai/gpt-4.1":              {Input: 2.00, Output: 8.00, CacheRead: 0.50, CacheWrite: 2.00},
		"openai/gpt-4.1-mini":         {Input: 0.40, Output: 1.60, CacheRead: 0.10, CacheWrite: 0.40},
		"openai/gpt-5":                {Input: 1.25, Output: 10.00, CacheRead: 0.125, CacheWrite: 1.25},
		"openai/gpt-5-codex":          {Input: 1.25, Output: 10.00, CacheRead: 0.125, CacheWrite: 1.25},
		"openai/o3":                   {Input: 2.00, Output: 8.00, CacheRead: 0.50, CacheWrite: 2.00},
		"openai/o4-mini":              {Input: 1.10, Output: 4.40, CacheRead: 0.275, CacheWrite: 1.10},
		"google/gemini-2.5-pro":       {Input: 1.25, Output: 10.00, CacheRead: 0.31, CacheWrite: 1.625, InputAbove: f(2.50), OutputAbove: f(15.00)},
		"xai/grok-4":                  {Input: 3.00, Output: 15.00, CacheRead: 0.75, CacheWrite: 3.75},
	}
}

// Load returns the default table with TOML overrides from path merged
// on top. An empty path returns the defaults unchanged.
func Load(path string) (Table, error) {
	table := Default()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	var overrides map[string]Rate
	if err := toml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}

	maps.Copy(table, overrides)

	return table, nil
}

// Resolve finds the rate for a model name. It tries, in order: the
// exact name, the name under each provider prefix, then a
// case-insensitive substring match against the table keys. A miss is
// not an error; callers contribute zero cost for unresolved models.
func Resolve(table Table, model string) (Rate, bool) {
	model = normalize(model)
	if model == "" {
		return Rate{}, false
	}

	if rate, ok := table[model]; ok {
		return rate, true
	}
	for _, prefix := range providerPrefixes {
		if rate, ok := table[prefix+model]; ok {
			return rate, true
		}
	}

	// Sorted keys keep the substring fallback deterministic.
	lower := strings.ToLower(model)
	for _, key := range slices.Sorted(maps.Keys(table)) {
		k := strings.ToLower(key)
		if strings.Contains(k, lower) || strings.Contains(lower, strings.TrimPrefix(k, providerOf(k))) {
			return table[key], true
		}
	}
	return Rate{}, false
}

// Cost prices one request's usage under the tiered formula: tokens up
// to TierThreshold at the base rate, the excess at the above-threshold
// rate when one exists.
func (r Rate) Cost(input, cacheWrite, cacheRead, output int64) float64 {
	cost := component(input, r.Input, r.InputAbove)
	cost += component(cacheWrite, r.CacheWrite, r.CacheWriteAbove)
	cost += component(cacheRead, r.CacheRead, r.CacheReadAbove)
	cost += component(output, r.Output, r.OutputAbove)
	return cost
}

func component(tokens int64, base float64, above *float64) float64 {
	if tokens <= 0 {
		return 0
	}
	if above == nil || tokens <= TierThreshold {
		return float64(tokens) / perMillion * base
	}
	below := float64(TierThreshold) / perMillion * base
	excess := float64(tokens-TierThreshold) / perMillion * *above
	return below + excess
}

func providerOf(key string) string {
	if idx := strings.Index(key, "/"); idx != -1 {
		return key[:idx+1]
	}
	return ""
}

// normalize lowercases, trims, strips trailing date suffixes
// (Anthropic -YYYYMMDD and OpenAI -YYYY-MM-DD forms) and folds dashed
// minor versions into dotted ones so table lookups hit.
func normalize(model string) string {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return model
	}

	if idx := strings.LastIndex(model, "-"); idx != -1 {
		suffix := model[idx+1:]
		if len(suffix) == 8 && isDigits(suffix) {
			model = model[:idx]
		}
	}
	model = stripDateSuffix(model)

	model = strings.ReplaceAll(model, "-4-6", "-4.6")
	model = strings.ReplaceAll(model, "-4-5", "-4.5")
	model = strings.ReplaceAll(model, "-4-1", "-4.1")
	model = strings.ReplaceAll(model, "-3-5", "-3.5")
	model = strings.ReplaceAll(model, "-2-5", "-2.5")
	return model
}

// stripDateSuffix removes a trailing -YYYY-MM-DD from a model name.
func stripDateSuffix(model string) string {
	if len(model) < 12 {
		return model
	}
	suffix := model[len(model)-11:]
	if suffix[0] != '-' {
		return model
	}
	date := suffix[1:]
	if isDigits(date[0:4]) && date[4] == '-' && isDigits(date[5:7]) && date[7] == '-' && isDigits(date[8:10]) {
		return model[:len(model)-11]
	}
	return model
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
