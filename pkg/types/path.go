package types

import (
	"strconv"
	"strings"
)

// ExtractPath walks a dotted JSON path with optional [n] array indexing
// (e.g. "address.city", "tags[0]", "items[2].sku") over a decoded JSON value
// and returns the value found there. A missing path reports found=false
// rather than an error, matching the store's "absence, not error" rule.
func ExtractPath(doc any, path string) (any, bool) {
	if path == "" {
		return doc, true
	}
	segments := splitPath(path)
	cur := doc
	for _, seg := range segments {
		if seg.index != nil {
			arr, ok := cur.([]any)
			if !ok || *seg.index < 0 || *seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[*seg.index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, exists := obj[seg.key]
		if !exists {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

type pathSegment struct {
	key   string
	index *int
}

// splitPath turns "items[0].name" into [{key:"items"}, {index:0}, {key:"name"}].
func splitPath(path string) []pathSegment {
	var segments []pathSegment
	for _, dotted := range strings.Split(path, ".") {
		for dotted != "" {
			lb := strings.IndexByte(dotted, '[')
			if lb == -1 {
				segments = append(segments, pathSegment{key: dotted})
				break
			}
			if lb > 0 {
				segments = append(segments, pathSegment{key: dotted[:lb]})
			}
			rb := strings.IndexByte(dotted, ']')
			if rb == -1 || rb < lb {
				segments = append(segments, pathSegment{key: dotted})
				break
			}
			idxStr := dotted[lb+1 : rb]
			if n, err := strconv.Atoi(idxStr); err == nil {
				segments = append(segments, pathSegment{index: &n})
			}
			dotted = dotted[rb+1:]
		}
	}
	return segments
}
