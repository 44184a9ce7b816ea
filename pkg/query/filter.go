// Package query builds filtered, ordered and paginated reads over mapping entities.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidInput is wrapped by every error caused by a malformed filter, order or cursor.
var ErrInvalidInput = errors.New("invalid query input")

// Op is a filter operator, the suffix of a where key such as name_contains.
type Op string

const (
	OpEq         Op = "eq"
	OpNot        Op = "not"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpIn         Op = "in"
	OpContains   Op = "contains"
	OpStartsWith Op = "startsWith"
	OpEndsWith   Op = "endsWith"

	// OpAll is only valid on deletedAt and lifts the soft delete filter.
	OpAll Op = "all"
)

var operators = []Op{OpEq, OpNot, OpLt, OpLte, OpGt, OpGte, OpIn, OpContains, OpStartsWith, OpEndsWith, OpAll}

const (
	keyAnd = "AND"
	keyOr  = "OR"

	// DeletedAtField is the soft delete attribute.
	DeletedAtField = "deletedAt"
)

// Where is the raw filter tree: {AND: [...], OR: [...], "<field>_<op>": value}.
type Where map[string]any

// Expr is a parsed filter.
type Expr interface {
	isExpr()
}

// And matches when all of its children match.
type And []Expr

// Or matches when any of its children matches.
type Or []Expr

// Leaf compares a single field.
type Leaf struct {
	Field string
	Op    Op
	Value any
}

func (And) isExpr()  {}
func (Or) isExpr()   {}
func (Leaf) isExpr() {}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ParseWhere turns a raw filter into an expression. A nil expression means no constraint.
// Empty AND/OR branches are dropped.
func ParseWhere(w Where) (Expr, error) {
	return parseNode(w)
}

func parseNode(w map[string]any) (Expr, error) {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var parts And
	for _, key := range keys {
		var (
			e   Expr
			err error
		)
		switch key {
		case keyAnd:
			e, err = parseBranch(key, w[key], func(children []Expr) Expr { return And(children) })
		case keyOr:
			e, err = parseBranch(key, w[key], func(children []Expr) Expr { return Or(children) })
		default:
			e, err = parseLeaf(key, w[key])
		}
		if err != nil {
			return nil, err
		}
		if e != nil {
			parts = append(parts, e)
		}
	}

	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return parts, nil
	}
}

func parseBranch(key string, raw any, combine func([]Expr) Expr) (Expr, error) {
	items, ok := raw.([]any)
	if !ok {
		if typed, isTyped := raw.([]Where); isTyped {
			items = make([]any, len(typed))
			for i := range typed {
				items[i] = typed[i]
			}
		} else if raw != nil {
			return nil, invalidf("%s must be a list of filters", key)
		}
	}

	var children []Expr
	for i, item := range items {
		node, err := asNode(item)
		if err != nil {
			return nil, invalidf("%s[%d] must be a filter object", key, i)
		}

		child, err := parseNode(node)
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}

	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	default:
		return combine(children), nil
	}
}

func asNode(item any) (map[string]any, error) {
	switch v := item.(type) {
	case map[string]any:
		return v, nil
	case Where:
		return v, nil
	default:
		return nil, ErrInvalidInput
	}
}

// splitKey splits "<field>_<op>"; a key without an operator compares for equality.
func splitKey(key string) (string, Op, error) {
	field, op, found := strings.Cut(key, "_")
	if field == "" {
		return "", "", invalidf("empty field in filter key %q", key)
	}
	if !found {
		return field, OpEq, nil
	}
	if !slices.Contains(operators, Op(op)) {
		return "", "", invalidf("unknown operator %q in filter key %q", op, key)
	}
	return field, Op(op), nil
}

func parseLeaf(key string, raw any) (Expr, error) {
	field, op, err := splitKey(key)
	if err != nil {
		return nil, err
	}

	if op == OpAll {
		if field != DeletedAtField {
			return nil, invalidf("operator all is only supported on %s", DeletedAtField)
		}
		return nil, nil
	}

	value, err := normalizeValue(raw)
	if err != nil {
		return nil, invalidf("filter %q: %v", key, err)
	}

	switch op {
	case OpIn:
		if _, ok := value.([]any); !ok {
			return nil, invalidf("filter %q expects a list", key)
		}
	case OpEq, OpNot:
		if _, ok := value.([]any); ok {
			return nil, invalidf("filter %q expects a scalar", key)
		}
	default:
		if value == nil {
			return nil, invalidf("filter %q does not accept null", key)
		}
		if _, ok := value.([]any); ok {
			return nil, invalidf("filter %q expects a scalar", key)
		}
	}

	if op == OpContains || op == OpStartsWith || op == OpEndsWith {
		if _, ok := value.(string); !ok {
			return nil, invalidf("filter %q expects a string", key)
		}
	}

	return Leaf{Field: field, Op: op, Value: value}, nil
}

// normalizeValue converts decoded JSON values into driver friendly ones.
func normalizeValue(raw any) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
		return v, nil
	case []any:
		out := make([]any, len(v))
		for i := range v {
			item, err := normalizeValue(v[i])
			if err != nil {
				return nil, err
			}
			if _, nested := item.([]any); nested {
				return nil, errors.New("nested lists are not supported")
			}
			out[i] = item
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case map[string]any:
		return nil, errors.New("objects are not valid filter values")
	default:
		return raw, nil
	}
}

// hasDeletedAtFilter reports whether the top level of w filters on deletedAt.
func hasDeletedAtFilter(w Where) bool {
	for key := range w {
		if key == DeletedAtField || strings.HasPrefix(key, DeletedAtField+"_") {
			return true
		}
	}
	return false
}

// withSoftDelete excludes soft deleted rows unless w filters on deletedAt itself.
// deletedAt_all lifts the exclusion without adding a constraint.
func withSoftDelete(w Where) Where {
	if hasDeletedAtFilter(w) {
		return w
	}

	out := make(Where, len(w)+1)
	for k, v := range w {
		out[k] = v
	}
	out[DeletedAtField+"_"+string(OpEq)] = nil
	return out
}
