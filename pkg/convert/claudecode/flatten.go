package claudecode

import "sort"

// Flatten turns the record graph into one chronological sequence.
//
// Records form a parent-pointer tree, but walking parentUuid chains to
// reconstruct order silently drops branches: parallel tool calls each
// produce a result record pointing back at its own originating call,
// not at the previous result in the chain. Sorting by wall-clock
// timestamp (uuid as the tie-break, for determinism) is robust to that
// and fixed a real defect where 2 of 3 parallel results were lost.
// "isSidechain" is treated purely as a filter predicate, never as a
// traversal rule.
func Flatten(records []Record) []Record {
	flat := make([]Record, 0, len(records))
	for _, r := range records {
		if r.IsSidechain {
			continue
		}
		flat = append(flat, r)
	}

	sort.SliceStable(flat, func(i, j int) bool {
		if flat[i].Timestamp != flat[j].Timestamp {
			return flat[i].Timestamp < flat[j].Timestamp
		}
		return flat[i].UUID < flat[j].UUID
	})

	return flat
}
