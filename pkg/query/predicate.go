package query

import (
	"strings"

	"github.com/bobboyms/corvusdb/pkg/types"
)

// Operator is one of the predicate comparison kinds the engine supports.
type Operator string

const (
	OpEqual      Operator = "eq"
	OpNotEqual   Operator = "ne"
	OpLessThan   Operator = "lt"
	OpLessOrEq   Operator = "lte"
	OpGreater    Operator = "gt"
	OpGreaterOrEq Operator = "gte"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpExists     Operator = "exists"
	OpNotExists  Operator = "not_exists"
)

// Predicate is one (path, operator, operand) term; predicates within a
// Query combine with logical AND.
type Predicate struct {
	Path     string
	Operator Operator
	Value    any
}

// isSingleSegment reports whether path names a top-level field, the only
// shape the planner will match against an index.
func isSingleSegment(path string) bool {
	return !strings.ContainsAny(path, ".[")
}

// matches evaluates p against a decoded JSON payload.
func (p Predicate) matches(payload any) bool {
	val, found := types.ExtractPath(payload, p.Path)

	switch p.Operator {
	case OpExists:
		return found
	case OpNotExists:
		return !found
	}

	if !found {
		return false
	}

	switch p.Operator {
	case OpEqual:
		return types.FromJSON(val).Compare(types.FromJSON(p.Value)) == 0
	case OpNotEqual:
		return types.FromJSON(val).Compare(types.FromJSON(p.Value)) != 0
	case OpLessThan:
		return types.FromJSON(val).Compare(types.FromJSON(p.Value)) < 0
	case OpLessOrEq:
		return types.FromJSON(val).Compare(types.FromJSON(p.Value)) <= 0
	case OpGreater:
		return types.FromJSON(val).Compare(types.FromJSON(p.Value)) > 0
	case OpGreaterOrEq:
		return types.FromJSON(val).Compare(types.FromJSON(p.Value)) >= 0
	case OpContains:
		s, ok1 := val.(string)
		operand, ok2 := p.Value.(string)
		if !ok1 || !ok2 {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(operand))
	case OpStartsWith:
		s, ok1 := val.(string)
		operand, ok2 := p.Value.(string)
		if !ok1 || !ok2 {
			return false
		}
		return strings.HasPrefix(s, operand)
	case OpEndsWith:
		s, ok1 := val.(string)
		operand, ok2 := p.Value.(string)
		if !ok1 || !ok2 {
			return false
		}
		return strings.HasSuffix(s, operand)
	case OpIn:
		arr, ok := p.Value.([]any)
		if !ok {
			return false
		}
		target := types.FromJSON(val)
		for _, item := range arr {
			if target.Compare(types.FromJSON(item)) == 0 {
				return true
			}
		}
		return false
	case OpNotIn:
		arr, ok := p.Value.([]any)
		if !ok {
			return false
		}
		target := types.FromJSON(val)
		for _, item := range arr {
			if target.Compare(types.FromJSON(item)) == 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func matchesAll(payload any, predicates []Predicate) bool {
	for _, p := range predicates {
		if !p.matches(payload) {
			return false
		}
	}
	return true
}
