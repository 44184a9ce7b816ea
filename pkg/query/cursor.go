package query

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

type cursorKind string

const (
	kindNull   cursorKind = "null"
	kindInt    cursorKind = "int"
	kindFloat  cursorKind = "float"
	kindString cursorKind = "string"
	kindBool   cursorKind = "bool"
	kindTime   cursorKind = "time"
)

// cursorValue keeps the Go kind of a sort key so that decoding restores the same value.
type cursorValue struct {
	Kind  cursorKind      `json:"k"`
	Value json.RawMessage `json:"v,omitempty"`
}

// EncodeCursor encodes the sort key values of a row.
func EncodeCursor(values []any) (string, error) {
	encoded := make([]cursorValue, len(values))
	for i, v := range values {
		cv, err := toCursorValue(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode cursor value %d: %w", i, err)
		}
		encoded[i] = cv
	}

	raw, err := json.Marshal(encoded)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor restores the values passed to EncodeCursor.
func DecodeCursor(cursor string) ([]any, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, invalidf("malformed cursor")
	}

	var encoded []cursorValue
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, invalidf("malformed cursor")
	}

	values := make([]any, len(encoded))
	for i, cv := range encoded {
		v, err := fromCursorValue(cv)
		if err != nil {
			return nil, invalidf("malformed cursor value %d: %v", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func toCursorValue(v any) (cursorValue, error) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return cursorValue{Kind: kindNull}, nil
		}
		if _, isTime := rv.Elem().Interface().(time.Time); !isTime {
			if s, ok := rv.Interface().(fmt.Stringer); ok {
				return marshalCursorValue(kindString, s.String())
			}
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return cursorValue{Kind: kindNull}, nil
	}

	var (
		kind  cursorKind
		value any
	)
	switch x := rv.Interface().(type) {
	case time.Time:
		kind, value = kindTime, x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		kind, value = kindString, x.String()
	default:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			kind, value = kindInt, rv.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			kind, value = kindInt, rv.Uint()
		case reflect.Float32, reflect.Float64:
			kind, value = kindFloat, rv.Float()
		case reflect.String:
			kind, value = kindString, rv.String()
		case reflect.Bool:
			kind, value = kindBool, rv.Bool()
		default:
			return cursorValue{}, fmt.Errorf("unsupported sort key type %s", rv.Type())
		}
	}

	return marshalCursorValue(kind, value)
}

func marshalCursorValue(kind cursorKind, value any) (cursorValue, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return cursorValue{}, err
	}
	return cursorValue{Kind: kind, Value: raw}, nil
}

func fromCursorValue(cv cursorValue) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(cv.Value))
	dec.UseNumber()

	switch cv.Kind {
	case kindNull:
		return nil, nil
	case kindInt:
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return nil, err
		}
		return n.Int64()
	case kindFloat:
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return nil, err
		}
		return n.Float64()
	case kindString:
		var s string
		err := dec.Decode(&s)
		return s, err
	case kindBool:
		var b bool
		err := dec.Decode(&b)
		return b, err
	case kindTime:
		var s string
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	default:
		return nil, fmt.Errorf("unknown kind %q", cv.Kind)
	}
}

// cursorFilter selects the rows strictly after values under sorts, or strictly before them
// when backward is set. For sorts (a, b) moving forward in ascending order it yields
// a > va OR (a = va AND b > vb).
func cursorFilter(sorts []Sort, values []any, backward bool) (Expr, error) {
	if len(values) != len(sorts) {
		return nil, invalidf("cursor has %d values, order has %d fields", len(values), len(sorts))
	}

	var alternatives Or
	for i, s := range sorts {
		if values[i] == nil {
			return nil, invalidf("cursor value for %s is null", s.Field)
		}

		op := OpGt
		if s.Desc != backward {
			op = OpLt
		}

		branch := make(And, 0, i+1)
		for j := range i {
			branch = append(branch, Leaf{Field: sorts[j].Field, Op: OpEq, Value: values[j]})
		}
		branch = append(branch, Leaf{Field: s.Field, Op: op, Value: values[i]})

		if len(branch) == 1 {
			alternatives = append(alternatives, branch[0])
		} else {
			alternatives = append(alternatives, branch)
		}
	}

	if len(alternatives) == 1 {
		return alternatives[0], nil
	}
	return alternatives, nil
}
