package query

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/goran-ethernal/ChainProcessor/internal/db"
	"github.com/jmoiron/sqlx"
)

// compiler renders expressions as SQL with named parameters.
// Every comparison gets its own parameter, even when a field is filtered twice.
type compiler struct {
	entity *Entity
	params map[string]any
	n      int
}

func newCompiler(entity *Entity) *compiler {
	return &compiler{entity: entity, params: make(map[string]any)}
}

func (c *compiler) param(v any) string {
	name := "p" + strconv.Itoa(c.n)
	c.n++
	c.params[name] = v
	return ":" + name
}

func (c *compiler) compile(e Expr) (string, error) {
	switch x := e.(type) {
	case nil:
		return "", nil
	case And:
		return c.group(x, " AND ")
	case Or:
		return c.group(x, " OR ")
	case Leaf:
		return c.leaf(x)
	default:
		return "", fmt.Errorf("unexpected expression %T", e)
	}
}

func (c *compiler) group(children []Expr, sep string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		sql, err := c.compile(child)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	default:
		return "(" + strings.Join(parts, sep) + ")", nil
	}
}

func (c *compiler) leaf(l Leaf) (string, error) {
	col, err := c.entity.Column(l.Field)
	if err != nil {
		return "", err
	}

	if c.entity.decimals[l.Field] {
		if l.Value, err = decimalOperand(l.Field, l.Op, l.Value); err != nil {
			return "", err
		}
	}

	switch l.Op {
	case OpEq:
		if l.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + c.param(l.Value), nil
	case OpNot:
		if l.Value == nil {
			return col + " IS NOT NULL", nil
		}
		return col + " <> " + c.param(l.Value), nil
	case OpLt:
		return col + " < " + c.param(l.Value), nil
	case OpLte:
		return col + " <= " + c.param(l.Value), nil
	case OpGt:
		return col + " > " + c.param(l.Value), nil
	case OpGte:
		return col + " >= " + c.param(l.Value), nil
	case OpIn:
		values, _ := l.Value.([]any)
		if len(values) == 0 {
			return "1 = 0", nil
		}
		return col + " IN (" + c.param(values) + ")", nil
	case OpContains, OpStartsWith, OpEndsWith:
		s, _ := l.Value.(string)
		pattern := escapeLike(s)
		switch l.Op {
		case OpContains:
			pattern = "%" + pattern + "%"
		case OpStartsWith:
			pattern += "%"
		default:
			pattern = "%" + pattern
		}
		return "LOWER(" + col + ") LIKE LOWER(" + c.param(pattern) + `) ESCAPE '\'`, nil
	default:
		return "", invalidf("operator %s cannot be used in a query", l.Op)
	}
}

// decimalOperand converts the operand of a comparison on a bigint column to its stored form.
func decimalOperand(field string, op Op, v any) (any, error) {
	switch op {
	case OpContains, OpStartsWith, OpEndsWith:
		return v, nil
	case OpIn:
		values, _ := v.([]any)
		out := make([]any, len(values))
		for i, item := range values {
			d, err := decimalValue(field, item)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	default:
		return decimalValue(field, v)
	}
}

func decimalValue(field string, v any) (any, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int:
		s = strconv.Itoa(x)
	default:
		return nil, invalidf("field %s expects an integer, got %T", field, v)
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, invalidf("field %s expects an integer, got %q", field, s)
	}
	formatted, err := db.FormatBigInt(n)
	if err != nil {
		return nil, invalidf("field %s: %v", field, err)
	}
	return formatted, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// selectQuery is a single SELECT over an entity table.
type selectQuery struct {
	columns []string
	where   string
	order   []string
	limit   int
	offset  int
}

func (q selectQuery) sql(table string) string {
	var b strings.Builder

	b.WriteString("SELECT ")
	if len(q.columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(q.columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(table)

	if q.where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.where)
	}
	if len(q.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.order, ", "))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	}
	if q.offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.offset)
	}

	return b.String()
}

// orderClause maps sorts to ORDER BY items.
func orderClause(entity *Entity, sorts []Sort) ([]string, error) {
	out := make([]string, 0, len(sorts))
	for _, s := range sorts {
		col, err := entity.Column(s.Field)
		if err != nil {
			return nil, err
		}
		if s.Desc {
			out = append(out, col+" DESC")
		} else {
			out = append(out, col+" ASC")
		}
	}
	return out, nil
}

// bind turns named parameters into positional ones for db, expanding IN lists.
func bind(conn *sqlx.DB, query string, params map[string]any) (string, []any, error) {
	if len(params) == 0 {
		return query, nil, nil
	}

	query, args, err := sqlx.Named(query, params)
	if err != nil {
		return "", nil, fmt.Errorf("failed to bind query parameters: %w", err)
	}

	query, args, err = sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to expand query parameters: %w", err)
	}

	return conn.Rebind(query), args, nil
}
