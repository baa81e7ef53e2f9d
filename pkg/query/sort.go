package query

import (
	"sort"

	"github.com/bobboyms/corvusdb/pkg/types"
)

// SortKey orders results by path, ascending unless Descending is set.
type SortKey struct {
	Path       string
	Descending bool
}

// sortDocuments applies a stable multi-key sort; a key missing from a
// payload compares as null, less than any present non-null value, so it
// comes first for an ascending key and last for a descending one.
func sortDocuments(docs []DocumentView, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareByKey(docs[i].Payload, docs[j].Payload, k.Path)
			if k.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}

func compareByKey(a, b any, path string) int {
	va, foundA := types.ExtractPath(a, path)
	vb, foundB := types.ExtractPath(b, path)

	var ka, kb types.Comparable
	if foundA {
		ka = types.FromJSON(va)
	} else {
		ka = types.NullKey{}
	}
	if foundB {
		kb = types.FromJSON(vb)
	} else {
		kb = types.NullKey{}
	}
	return ka.Compare(kb)
}
