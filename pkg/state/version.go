package state

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// CheckIndexerVersion verifies version against constraint. A constraint is a list of
// alternatives separated by "||", each a space separated list of comparators such as
// ">=3.0.0 <4.0.0", "^3.1.0" or "~3.1.0". An empty constraint accepts any version.
func CheckIndexerVersion(version, constraint string) error {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return nil
	}

	v := canonical(version)
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q is not a semantic version", ErrIncompatibleIndexer, version)
	}

	for _, alt := range strings.Split(constraint, "||") {
		ok, err := satisfiesAll(v, strings.Fields(alt))
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	return fmt.Errorf("%w: %s does not satisfy %q", ErrIncompatibleIndexer, version, constraint)
}

func satisfiesAll(v string, comparators []string) (bool, error) {
	for _, c := range comparators {
		ok, err := satisfies(v, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func satisfies(v, comparator string) (bool, error) {
	op, raw := splitOperator(comparator)
	want := canonical(raw)
	if !semver.IsValid(want) {
		return false, fmt.Errorf("invalid version constraint %q", comparator)
	}

	cmp := semver.Compare(v, want)
	switch op {
	case ">=":
		return cmp >= 0, nil
	case ">":
		return cmp > 0, nil
	case "<=":
		return cmp <= 0, nil
	case "<":
		return cmp < 0, nil
	case "=", "":
		return cmp == 0, nil
	case "^":
		return cmp >= 0 && semver.Major(v) == semver.Major(want), nil
	case "~":
		return cmp >= 0 && semver.MajorMinor(v) == semver.MajorMinor(want), nil
	default:
		return false, fmt.Errorf("invalid version constraint %q", comparator)
	}
}

func splitOperator(c string) (string, string) {
	for _, op := range []string{">=", "<=", ">", "<", "=", "^", "~"} {
		if strings.HasPrefix(c, op) {
			return op, strings.TrimPrefix(c, op)
		}
	}
	return "", c
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
