package codegen

import (
	"fmt"
	"strings"
	"unicode"
)

// typeKind groups Substrate types by how they are decoded and stored.
type typeKind int

const (
	kindRaw  typeKind = iota // anything structured, kept as JSON
	kindText                 // addresses, hashes, strings
	kindInt                  // fits in int64
	kindBig                  // u64 and wider, kept as decimal text
	kindBool
)

const (
	textType   = "TEXT"
	stringType = "string"
)

var (
	intTypes = map[string]bool{
		"u8": true, "u16": true, "u32": true,
		"i8": true, "i16": true, "i32": true, "i64": true,
		"BlockNumber": true, "Index": true, "EraIndex": true,
		"SessionIndex": true, "ParaId": true, "AssetId": true,
	}

	bigTypes = map[string]bool{
		"u64": true, "u128": true, "u256": true, "i128": true, "i256": true,
		"Balance": true, "BalanceOf": true, "Moment": true,
	}

	accountTypes = map[string]bool{
		"AccountId": true, "AccountId32": true, "AccountIdOf": true,
		"Address": true, "LookupSource": true, "MultiAddress": true,
	}

	textTypes = map[string]bool{
		"Text": true, "Bytes": true, "Vec<u8>": true, "str": true, "String": true,
		"Hash": true, "H160": true, "H256": true, "BlockHash": true,
	}

	// baseColumns are written for every entity and cannot be used by parameters.
	baseColumns = map[string]bool{
		"id": true, "chain": true, "block_height": true, "signer": true, "created_at": true,
	}

	reservedWords = map[string]bool{
		"from": true, "to": true, "order": true, "group": true, "index": true, "key": true,
		"type": true, "user": true, "limit": true, "offset": true, "select": true,
		"table": true, "where": true, "default": true, "check": true, "primary": true,
	}
)

// classify returns the storage kind of a Substrate type. Path prefixes such as
// "T::" and Compact wrappers are ignored.
func classify(substrateType string) typeKind {
	t := strings.Join(strings.Fields(substrateType), "")
	if i := strings.LastIndex(t, "::"); i >= 0 && !strings.ContainsAny(t, "<([") {
		t = t[i+2:]
	}
	if inner, ok := strings.CutPrefix(t, "Compact<"); ok && strings.HasSuffix(inner, ">") {
		return classify(strings.TrimSuffix(inner, ">"))
	}

	switch {
	case t == "bool":
		return kindBool
	case intTypes[t]:
		return kindInt
	case bigTypes[t]:
		return kindBig
	case accountTypes[t] || textTypes[t]:
		return kindText
	default:
		return kindRaw
	}
}

func isAccount(substrateType string) bool {
	t := substrateType
	if i := strings.LastIndex(t, "::"); i >= 0 {
		t = t[i+2:]
	}
	return accountTypes[t]
}

// GoParamType returns the Go type a parameter is decoded into.
func GoParamType(substrateType string) string {
	switch classify(substrateType) {
	case kindBool:
		return "bool"
	case kindInt:
		return "int64"
	case kindBig:
		// accepts both quoted and bare numbers
		return "json.Number"
	case kindText:
		return stringType
	default:
		return "json.RawMessage"
	}
}

// GoFieldType returns the Go type of the entity field a parameter is stored in.
func GoFieldType(substrateType string) string {
	switch classify(substrateType) {
	case kindBool:
		return "bool"
	case kindInt:
		return "int64"
	case kindBig, kindText:
		return stringType
	default:
		return "json.RawMessage"
	}
}

// NeedsJSON reports whether code using the type must import encoding/json.
func NeedsJSON(substrateType string) bool {
	k := classify(substrateType)
	return k == kindBig || k == kindRaw
}

// DBTypeName converts a Substrate type to a column definition.
func DBTypeName(substrateType string) string {
	switch classify(substrateType) {
	case kindBool:
		return "BOOLEAN NOT NULL"
	case kindInt:
		return "BIGINT NOT NULL"
	case kindBig, kindText:
		return textType + " NOT NULL"
	default:
		// Option<T> decodes to null
		return textType
	}
}

// MeddlerTag returns the meddler struct tag for a parameter field.
func MeddlerTag(param Param) string {
	if classify(param.Type) == kindRaw {
		return fmt.Sprintf(`meddler:"%s,json"`, DBFieldName(param))
	}
	return fmt.Sprintf(`meddler:"%s"`, DBFieldName(param))
}

// DBFieldName converts a parameter to its column name.
// Examples: "newFree" -> "new_free", "from: AccountId" -> "from_account", "index: u32" -> "index_value"
func DBFieldName(param Param) string {
	snake := ToSnakeCase(param.Name)

	switch {
	case baseColumns[snake]:
		return "param_" + snake
	case reservedWords[snake] && isAccount(param.Type):
		return snake + "_account"
	case reservedWords[snake]:
		return snake + "_value"
	default:
		return snake
	}
}

// FieldName returns the Go field name of a parameter.
func FieldName(param Param) string {
	return ToPascalCase(DBFieldName(param))
}

// JSONName returns the JSON name of a parameter field. It matches the attribute
// name the query layer derives from the column.
func JSONName(param Param) string {
	return ToLowerCamelCase(DBFieldName(param))
}

// FieldValue returns the expression that converts the decoded parameter to the entity field.
func FieldValue(param Param) string {
	if classify(param.Type) == kindBig {
		return "p." + FieldName(param) + ".String()"
	}
	return "p." + FieldName(param)
}

// ToSnakeCase converts a string from camelCase or PascalCase to snake_case.
func ToSnakeCase(s string) string {
	runes := []rune(s)
	result := make([]rune, 0, len(runes)+len(runes))
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && runes[i-1] != '_' &&
			(!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// ToPascalCase converts a string to PascalCase, keeping the case of inner letters.
func ToPascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})

	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}

	return strings.Join(parts, "")
}

// ToLowerCamelCase converts a string to lowerCamelCase.
func ToLowerCamelCase(s string) string {
	pascal := ToPascalCase(s)
	if len(pascal) == 0 {
		return pascal
	}
	return strings.ToLower(pascal[:1]) + pascal[1:]
}

// Pluralize returns a simple pluralized form of a word.
func Pluralize(word string) string {
	if strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") ||
		strings.HasSuffix(word, "z") || strings.HasSuffix(word, "ch") ||
		strings.HasSuffix(word, "sh") {
		return word + "es"
	}
	if strings.HasSuffix(word, "y") && len(word) > 1 {
		beforeY := rune(word[len(word)-2])
		if !isVowel(beforeY) {
			return word[:len(word)-1] + "ies"
		}
	}
	return word + "s"
}

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	default:
		return false
	}
}

// TableName generates a table name from an entity name.
func TableName(entityName string) string {
	return Pluralize(ToSnakeCase(entityName))
}

// TableConst returns the name of the generated constant holding the table of s.
func TableConst(s *Signature) string {
	return ToLowerCamelCase(s.TableName()) + "Table"
}

// ParamsType returns the name of the generated struct the parameters of s decode into.
func ParamsType(s *Signature) string {
	return ToLowerCamelCase(s.EntityName()) + "Params"
}
