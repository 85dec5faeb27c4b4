// Package diff compares two RecordSets by identity key.
package diff

import (
	"recmerge/pkg/records"
)

// Result holds the two one-sided differences of a comparison.
type Result struct {
	// Missing are legacy records whose key is absent from canonical, in
	// legacy order. Legacy duplicates are all reported.
	Missing records.RecordSet

	// Extra are canonical records whose key is absent from legacy, in
	// canonical order. They are reported only; removing them is a human
	// decision.
	Extra records.RecordSet
}

// Empty reports whether both sides agree.
func (r Result) Empty() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0
}

// Diff compares legacy against canonical using kb to derive identity keys.
// Each side is indexed once, so the cost is linear in the total size.
func Diff(legacy, canonical records.RecordSet, kb records.KeyBuilder) Result {
	canonKeys := index(canonical, kb)
	legacyKeys := index(legacy, kb)

	var res Result
	for _, r := range legacy {
		if _, ok := canonKeys[kb.Key(r)]; !ok {
			res.Missing = append(res.Missing, r)
		}
	}
	for _, r := range canonical {
		if _, ok := legacyKeys[kb.Key(r)]; !ok {
			res.Extra = append(res.Extra, r)
		}
	}
	return res
}

func index(s records.RecordSet, kb records.KeyBuilder) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for _, r := range s {
		out[kb.Key(r)] = struct{}{}
	}
	return out
}
