package listing

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Sortable exposes record fields by name for NewComparator. SortValue
// returns nil for unknown fields.
type Sortable interface {
	SortValue(field string) any
}

type comparatorConfig struct {
	transform     func(any) any
	caseSensitive bool
}

// ComparatorOption customizes NewComparator.
type ComparatorOption func(*comparatorConfig)

// WithKeyTransform normalizes field values before they are compared.
// It replaces the default lower-casing of strings.
func WithKeyTransform(fn func(any) any) ComparatorOption {
	return func(c *comparatorConfig) { c.transform = fn }
}

// CaseSensitive disables the default lower-casing of string values.
func CaseSensitive() ComparatorOption {
	return func(c *comparatorConfig) { c.caseSensitive = true }
}

// NewComparator returns a comparison function over field, suitable for
// slices.SortStableFunc. It returns -1, 0 or 1. Strings compare without
// regard to case unless CaseSensitive or WithKeyTransform is given;
// descending flips the natural order.
func NewComparator[T Sortable](field string, descending bool, opts ...ComparatorOption) func(a, b T) int {
	var cfg comparatorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.transform == nil && !cfg.caseSensitive {
		cfg.transform = lowerString
	}

	key := func(v T) any { return v.SortValue(field) }
	if fn := cfg.transform; fn != nil {
		key = func(v T) any { return fn(v.SortValue(field)) }
	}

	sign := 1
	if descending {
		sign = -1
	}
	return func(a, b T) int {
		return sign * compareValues(key(a), key(b))
	}
}

// SortStable returns a copy of items ordered by s. Items are returned in
// their original order when s is inactive.
func SortStable[T Sortable](items []T, s Sort, opts ...ComparatorOption) []T {
	out := slices.Clone(items)
	if !s.Active() {
		return out
	}
	slices.SortStableFunc(out, NewComparator[T](s.Key, s.Order == SortDesc, opts...))
	return out
}

func lowerString(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

// Kind ranks used to order values of different types.
const (
	rankNil = iota
	rankNumber
	rankTime
	rankBool
	rankString
	rankOther
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case time.Time:
		return rankTime
	case bool:
		return rankBool
	case string:
		return rankString
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	return rankOther
}

// compareValues is a total order: values are grouped by kind
// (nil < number < time < bool < string < other) and only compared with
// values of the same kind.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch ra {
	case rankNil:
		return 0
	case rankNumber:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return cmp.Compare(x, y)
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	case rankBool:
		return compareBool(a.(bool), b.(bool))
	case rankString:
		return cmp.Compare(a.(string), b.(string))
	default:
		return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
