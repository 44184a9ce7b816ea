package query

import (
	"strings"
)

// IDField is the attribute used to break ties between equal sort keys.
const IDField = "id"

// Sort orders by one attribute.
type Sort struct {
	Field string
	Desc  bool
}

func (s Sort) String() string {
	if s.Desc {
		return s.Field + "_DESC"
	}
	return s.Field + "_ASC"
}

// ParseOrderBy parses items of the form "<field>_ASC" or "<field>_DESC".
// Items may also be comma separated lists.
func ParseOrderBy(items []string) ([]Sort, error) {
	var sorts []Sort
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			field, dir, found := strings.Cut(part, "_")
			if !found || field == "" {
				return nil, invalidf("order %q must be <field>_ASC or <field>_DESC", part)
			}

			switch strings.ToUpper(dir) {
			case "ASC":
				sorts = append(sorts, Sort{Field: field})
			case "DESC":
				sorts = append(sorts, Sort{Field: field, Desc: true})
			default:
				return nil, invalidf("unknown sort direction %q in %q", dir, part)
			}
		}
	}
	return sorts, nil
}

// uniqueSort appends the id tie breaker so that every row has a distinct cursor.
func uniqueSort(sorts []Sort) []Sort {
	for _, s := range sorts {
		if s.Field == IDField {
			return sorts
		}
	}
	return append(sorts[:len(sorts):len(sorts)], Sort{Field: IDField})
}

func reverseSort(sorts []Sort) []Sort {
	out := make([]Sort, len(sorts))
	for i, s := range sorts {
		out[i] = Sort{Field: s.Field, Desc: !s.Desc}
	}
	return out
}
