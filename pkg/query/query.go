// Package query implements the filter/sort/project/paginate pipeline and
// its index-aware planner. A Query is built through a small fluent API
// whose methods modify the receiver and return it for chaining, covering
// predicates, sort keys, projection and pagination.
package query

import (
	"runtime"
	"sync"

	"github.com/bobboyms/corvusdb/pkg/errors"
	"github.com/bobboyms/corvusdb/pkg/index"
	"github.com/panjf2000/ants/v2"
)

// Query is built up via the fluent methods below and handed to Execute.
type Query struct {
	predicates []Predicate
	sort       []SortKey
	projection *Projection
	offset     int
	limit      int
	hasOffset  bool
	hasLimit   bool
}

// New starts an empty query.
func New() *Query {
	return &Query{}
}

// Where appends a predicate; predicates combine with logical AND.
func (q *Query) Where(path string, op Operator, value any) *Query {
	q.predicates = append(q.predicates, Predicate{Path: path, Operator: op, Value: value})
	return q
}

// OrderBy appends a sort key; earlier calls take priority over later ones.
func (q *Query) OrderBy(path string, descending bool) *Query {
	q.sort = append(q.sort, SortKey{Path: path, Descending: descending})
	return q
}

// Include sets an include-list projection (mutually exclusive with Exclude).
func (q *Query) Include(fields ...string) *Query {
	q.projection = &Projection{Include: fields}
	return q
}

// Exclude sets an exclude-list projection (mutually exclusive with Include).
func (q *Query) Exclude(fields ...string) *Query {
	q.projection = &Projection{Exclude: fields}
	return q
}

// Skip sets the pagination offset.
func (q *Query) Skip(n int) *Query {
	q.offset = n
	q.hasOffset = true
	return q
}

// Take sets the pagination limit.
func (q *Query) Take(n int) *Query {
	q.limit = n
	q.hasLimit = true
	return q
}

// Result is the outcome of Execute: the matched documents plus the name of
// the index the planner chose, for the wire protocol's index_used field.
type Result struct {
	Documents []DocumentView
	IndexUsed string
}

// Execute runs the full filter/sort/project/paginate pipeline against
// store, using idx to avoid a full scan when possible.
func Execute(q *Query, idx *index.Manager, store Store) (Result, error) {
	candidates, indexUsed, err := plan(q, idx, store)
	if err != nil {
		return Result{}, err
	}

	filtered := filterParallel(candidates, q.predicates)
	sortDocuments(filtered, q.sort)
	paginated := paginate(filtered, q)
	projected := projectAll(paginated, q.projection)

	return Result{Documents: projected, IndexUsed: indexUsed}, nil
}

// plan picks the cheapest access path: exact-match index, then range index,
// then full scan, per the spec's index-aware planner.
func plan(q *Query, idx *index.Manager, store Store) ([]DocumentView, string, error) {
	if name, ids, ok, err := tryExactIndex(q, idx); err != nil {
		return nil, "", err
	} else if ok {
		return store.ByIDs(ids), name, nil
	}

	if name, ids, ok, err := tryRangeIndex(q, idx); err != nil {
		return nil, "", err
	} else if ok {
		return store.ByIDs(ids), name, nil
	}

	return store.AllDocuments(), "", nil
}

func tryExactIndex(q *Query, idx *index.Manager) (string, []string, bool, error) {
	var fields []string
	seen := make(map[string]bool)
	for _, p := range q.predicates {
		if p.Operator == OpEqual && isSingleSegment(p.Path) && !seen[p.Path] {
			fields = append(fields, p.Path)
			seen[p.Path] = true
		}
	}
	if len(fields) == 0 {
		return "", nil, false, nil
	}

	name, ok := idx.FindBestIndex(fields)
	if !ok {
		return "", nil, false, nil
	}

	cfg, ok := idx.IndexConfig(name)
	if !ok {
		return "", nil, false, nil
	}

	values := make([]any, len(cfg.Fields))
	for i, f := range cfg.Fields {
		values[i] = eqValueFor(q.predicates, f)
	}

	ids, err := idx.LookupExact(name, values)
	if err != nil {
		return "", nil, false, err
	}
	return name, ids.ToSlice(), true, nil
}

func eqValueFor(predicates []Predicate, path string) any {
	for _, p := range predicates {
		if p.Operator == OpEqual && p.Path == path {
			return p.Value
		}
	}
	return nil
}

type rangeBounds struct {
	min, max         any
	hasMin, hasMax   bool
}

func tryRangeIndex(q *Query, idx *index.Manager) (string, []string, bool, error) {
	bounds := make(map[string]*rangeBounds)
	var order []string
	for _, p := range q.predicates {
		if !isSingleSegment(p.Path) {
			continue
		}
		b, ok := bounds[p.Path]
		if !ok {
			b = &rangeBounds{}
			bounds[p.Path] = b
			order = append(order, p.Path)
		}
		switch p.Operator {
		case OpGreater, OpGreaterOrEq:
			b.min, b.hasMin = p.Value, true
		case OpLessThan, OpLessOrEq:
			b.max, b.hasMax = p.Value, true
		}
	}

	for _, field := range order {
		b := bounds[field]
		if !b.hasMin && !b.hasMax {
			continue
		}
		name, ok := idx.FindBestIndex([]string{field})
		if !ok {
			continue
		}
		cfg, ok := idx.IndexConfig(name)
		if !ok || cfg.Kind != index.KindOrdered {
			continue
		}

		var min, max any
		if b.hasMin {
			min = b.min
		}
		if b.hasMax {
			max = b.max
		}
		ids, err := idx.LookupRange(name, min, max)
		if err != nil {
			if _, isQueryErr := err.(*errors.QueryError); isQueryErr {
				continue
			}
			return "", nil, false, err
		}
		return name, ids.ToSlice(), true, nil
	}

	return "", nil, false, nil
}

// filterParallel evaluates predicates across candidates using a bounded
// worker pool, preserving input order so the subsequent stable sort is
// deterministic.
func filterParallel(docs []DocumentView, predicates []Predicate) []DocumentView {
	if len(docs) == 0 {
		return nil
	}
	if len(predicates) == 0 {
		out := make([]DocumentView, len(docs))
		copy(out, docs)
		return out
	}

	keep := make([]bool, len(docs))

	pool, err := ants.NewPool(runtime.NumCPU(), ants.WithPreAlloc(true))
	if err != nil {
		for i, d := range docs {
			keep[i] = matchesAll(d.Payload, predicates)
		}
	} else {
		defer pool.Release()
		var wg sync.WaitGroup
		for i := range docs {
			i := i
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				keep[i] = matchesAll(docs[i].Payload, predicates)
			})
			if submitErr != nil {
				wg.Done()
				keep[i] = matchesAll(docs[i].Payload, predicates)
			}
		}
		wg.Wait()
	}

	out := make([]DocumentView, 0, len(docs))
	for i, ok := range keep {
		if ok {
			out = append(out, docs[i])
		}
	}
	return out
}

func paginate(docs []DocumentView, q *Query) []DocumentView {
	start := 0
	if q.hasOffset {
		start = q.offset
	}
	if start > len(docs) {
		start = len(docs)
	}
	end := len(docs)
	if q.hasLimit {
		if start+q.limit < end {
			end = start + q.limit
		}
	}
	return docs[start:end]
}
