package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxSafeInteger is JavaScript's Number.MAX_SAFE_INTEGER; it bounds the
// zero-padding width for numeric encoding (spec.md §4.4).
const maxSafeInteger = 9007199254740991

const numericWidth = 16 // len(strconv.Itoa(maxSafeInteger))

// Condition is the tagged filter variant: exactly one of Equal, Range,
// AnyOf, or StartsWith. A zero-value Condition matches nothing.
type Condition struct {
	Equal      any
	Range      *RangeCondition
	AnyOf      []any
	StartsWith string
	isSet      bool
}

// RangeCondition holds zero or more of gt/gte/lt/lte, all optional.
type RangeCondition struct {
	Gt  any
	Gte any
	Lt  any
	Lte any
}

// Eq builds an equality condition.
func Eq(v any) Condition { return Condition{Equal: v, isSet: true} }

// Rng builds a range condition.
func Rng(r RangeCondition) Condition { return Condition{Range: &r, isSet: true} }

// Any builds an any-of condition (union of equality seeks).
func Any(vs ...any) Condition { return Condition{AnyOf: vs, isSet: true} }

// Prefix builds a startsWith condition.
func Prefix(s string) Condition { return Condition{StartsWith: s, isSet: true} }

// IsZero reports whether the condition was never set.
func (c Condition) IsZero() bool { return !c.isSet }

// Encode renders value into the spec's order-preserving lexicographic
// encoding (spec.md §4.4). Strings containing the reserved \x00 delimiter
// are rejected per the Open Questions note.
func Encode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		if strings.ContainsRune(v, 0) {
			return "", fmt.Errorf("filter: tag string value contains reserved delimiter byte")
		}
		return `"` + v + `"`, nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case float64:
		return encodeNumber(v), nil
	case int:
		return encodeNumber(float64(v)), nil
	case int64:
		return encodeNumber(float64(v)), nil
	default:
		return "", fmt.Errorf("filter: unsupported tag value type %T", value)
	}
}

func encodeNumber(v float64) string {
	if v < 0 {
		offset := int64(maxSafeInteger) + int64(v)
		return "!" + zeroPad(offset)
	}
	return zeroPad(int64(v))
}

func zeroPad(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) >= numericWidth {
		return s
	}
	return strings.Repeat("0", numericWidth-len(s)) + s
}

// Matches evaluates a condition against an in-memory value (or, for
// AnyOf-over-arrays, any element of a []any value) without touching an
// index. It is the reference semantics that the encoded-key index scans
// must agree with (spec.md §8, property 2).
func Matches(value any, c Condition) bool {
	if c.IsZero() {
		return false
	}
	if arr, ok := value.([]any); ok {
		for _, elem := range arr {
			if matchesScalar(elem, c) {
				return true
			}
		}
		return false
	}
	return matchesScalar(value, c)
}

func matchesScalar(value any, c Condition) bool {
	switch {
	case c.Equal != nil:
		return compareEqual(value, c.Equal)
	case c.Range != nil:
		return matchesRange(value, *c.Range)
	case c.AnyOf != nil:
		for _, want := range c.AnyOf {
			if compareEqual(value, want) {
				return true
			}
		}
		return false
	case c.StartsWith != "":
		s, ok := value.(string)
		return ok && strings.HasPrefix(s, c.StartsWith)
	}
	return false
}

// MatchesAll reports whether every condition in conditions is satisfied by
// the corresponding entry of values — the same conjunction semantics an
// index scan applies, evaluated directly against an in-memory map. Used by
// Records/Subscribe to test a freshly written record against a live
// subscriber filter without a round trip through an index.
func MatchesAll(values map[string]any, conditions map[string]Condition) bool {
	for prop, cond := range conditions {
		if !Matches(values[prop], cond) {
			return false
		}
	}
	return true
}

func compareEqual(a, b any) bool {
	ea, err1 := Encode(a)
	eb, err2 := Encode(b)
	return err1 == nil && err2 == nil && ea == eb
}

func matchesRange(value any, r RangeCondition) bool {
	ev, err := Encode(value)
	if err != nil {
		return false
	}
	check := func(bound any, cmp func(int) bool) bool {
		if bound == nil {
			return true
		}
		eb, err := Encode(bound)
		if err != nil {
			return false
		}
		return cmp(strings.Compare(ev, eb))
	}
	return check(r.Gt, func(c int) bool { return c > 0 }) &&
		check(r.Gte, func(c int) bool { return c >= 0 }) &&
		check(r.Lt, func(c int) bool { return c < 0 }) &&
		check(r.Lte, func(c int) bool { return c <= 0 })
}

// Bounds describes how to scan a sorted key space for a Condition: an
// optional lower/upper encoded bound (inclusive flags) and whether the
// absence of a lower bound requires a reverse scan so the matches that
// abut the upper bound are reached first (spec.md §4.4 Range filter rule).
type Bounds struct {
	HasLower       bool
	Lower          string
	LowerInclusive bool
	HasUpper       bool
	Upper          string
	UpperInclusive bool
	Reverse        bool
	// SkipEqualToLower implements the `gt` "skip entries whose extracted
	// value equals the operand" rule.
	SkipEqualToLower bool
	// ProbeEqualToUpper implements the `lte` supplemental equality probe.
	ProbeEqualToUpper bool
}

// RangeBounds computes the scan Bounds for a RangeCondition.
func RangeBounds(r RangeCondition) (Bounds, error) {
	var b Bounds
	switch {
	case r.Gte != nil:
		enc, err := Encode(r.Gte)
		if err != nil {
			return b, err
		}
		b.HasLower, b.Lower, b.LowerInclusive = true, enc, true
	case r.Gt != nil:
		enc, err := Encode(r.Gt)
		if err != nil {
			return b, err
		}
		b.HasLower, b.Lower, b.LowerInclusive = true, enc, true
		b.SkipEqualToLower = true
	default:
		b.Reverse = true
	}
	switch {
	case r.Lte != nil:
		enc, err := Encode(r.Lte)
		if err != nil {
			return b, err
		}
		b.HasUpper, b.Upper, b.UpperInclusive = true, enc, true
		b.ProbeEqualToUpper = true
	case r.Lt != nil:
		enc, err := Encode(r.Lt)
		if err != nil {
			return b, err
		}
		b.HasUpper, b.Upper, b.UpperInclusive = true, enc, false
	}
	return b, nil
}

// AnyOfEncoded returns the sorted, encoded seek prefixes for an AnyOf
// condition (callers issue one equality seek per value and union results).
func AnyOfEncoded(values []any) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		enc, err := Encode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	sort.Strings(out)
	return out, nil
}

// StartsWithPrefix returns the encoded-value prefix an index scan must match
// against for a startsWith condition (the opening quote plus the literal
// prefix, deliberately missing its closing quote).
func StartsWithPrefix(s string) string { return `"` + s }

// InBounds reports whether an already-encoded index value satisfies Bounds.
// Index scanners use this to apply the skip/probe rules documented on Bounds
// without re-encoding the stored value.
func InBounds(encodedValue string, b Bounds) bool {
	if b.HasLower {
		cmp := strings.Compare(encodedValue, b.Lower)
		if cmp < 0 {
			return false
		}
		if cmp == 0 && b.SkipEqualToLower {
			return false
		}
	}
	if b.HasUpper {
		cmp := strings.Compare(encodedValue, b.Upper)
		if b.UpperInclusive {
			if cmp > 0 {
				return false
			}
		} else if cmp >= 0 {
			return false
		}
	}
	return true
}
