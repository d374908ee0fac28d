package feature

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrymomot/featurekit/pkg/cache"
	"github.com/dmitrymomot/featurekit/pkg/logger"
)

const (
	// DefaultPatternCacheSize bounds the compiled regex patterns a Matcher keeps.
	DefaultPatternCacheSize = 256
	patternCacheTTL         = time.Hour
)

// Operator is a leaf condition comparison.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpContains  Operator = "contains"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpGT        Operator = "gt"
	OpGTE       Operator = "gte"
	OpLT        Operator = "lt"
	OpLTE       Operator = "lte"
	OpRegex     Operator = "regex"
	OpExists    Operator = "exists"
)

// Condition is a node of a rule's condition tree: either a leaf
// {attribute, operator, value} or a composite {all: [...]} / {any: [...]}.
type Condition struct {
	Attribute string      `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Operator  Operator    `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value     any         `json:"value,omitempty" yaml:"value,omitempty"`
	All       []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any       []Condition `json:"any,omitempty" yaml:"any,omitempty"`
}

// All returns a composite condition matching when every child matches.
func All(conds ...Condition) Condition {
	return Condition{All: append([]Condition{}, conds...)}
}

// Any returns a composite condition matching when at least one child matches.
func Any(conds ...Condition) Condition {
	return Condition{Any: append([]Condition{}, conds...)}
}

// Leaf returns a leaf condition.
func Leaf(attribute string, op Operator, value any) Condition {
	return Condition{Attribute: attribute, Operator: op, Value: value}
}

// Matcher evaluates conditions and keeps a bounded cache of compiled regex
// patterns. A nil Matcher is valid and compiles patterns on every use.
type Matcher struct {
	patterns *cache.Cache[*regexp.Regexp]
}

// NewMatcher returns a Matcher caching up to size patterns.
// A non-positive size uses DefaultPatternCacheSize.
func NewMatcher(size int) *Matcher {
	if size <= 0 {
		size = DefaultPatternCacheSize
	}
	return &Matcher{
		patterns: cache.New[*regexp.Regexp](
			cache.WithMaxEntries(size),
			cache.WithTTL(patternCacheTTL),
			cache.WithLogger(logger.Discard()),
		),
	}
}

// CachedPatterns reports how many compiled patterns are held.
func (m *Matcher) CachedPatterns() int {
	if m == nil || m.patterns == nil {
		return 0
	}
	return m.patterns.Len()
}

// Match evaluates cond against ctx without caching regex patterns.
func Match(cond Condition, ctx EvaluationContext) bool {
	var m *Matcher
	return m.Match(cond, ctx)
}

// Match evaluates cond against ctx.
//
// Comparison rules:
//   - numbers (any Go numeric type or json.Number) compare as float64
//   - strings compare exactly, bools only with bools; mixed kinds never match,
//     so not_equals and not_in fail when no operand shares the attribute's kind
//   - gt/gte/lt/lte order numbers numerically and strings lexicographically
//   - contains is substring for strings and membership for arrays
//   - in/not_in require an array comparison value
//   - exists with value false matches an absent attribute
//
// A missing attribute fails every operator except exists:false. Malformed
// nodes and unknown operators never match. An empty all matches, an empty
// any does not.
func (m *Matcher) Match(cond Condition, ctx EvaluationContext) bool {
	switch {
	case cond.All != nil && cond.Any != nil:
		return false
	case cond.All != nil:
		for _, c := range cond.All {
			if !m.Match(c, ctx) {
				return false
			}
		}
		return true
	case cond.Any != nil:
		for _, c := range cond.Any {
			if m.Match(c, ctx) {
				return true
			}
		}
		return false
	}

	if cond.Attribute == "" || cond.Operator == "" {
		return false
	}

	actual, found := ctx.Lookup(cond.Attribute)
	if cond.Operator == OpExists {
		switch want := cond.Value.(type) {
		case nil:
			return found
		case bool:
			return found == want
		default:
			return false
		}
	}
	if !found {
		return false
	}

	switch cond.Operator {
	case OpEquals:
		return equal(actual, cond.Value)
	case OpNotEquals:
		return sameKind(actual, cond.Value) && !equal(actual, cond.Value)
	case OpContains:
		return contains(actual, cond.Value)
	case OpIn:
		list, ok := toSlice(cond.Value)
		return ok && memberOf(actual, list)
	case OpNotIn:
		list, ok := toSlice(cond.Value)
		return ok && hasKind(list, kindOf(actual)) && !memberOf(actual, list)
	case OpGT:
		c, ok := compare(actual, cond.Value)
		return ok && c > 0
	case OpGTE:
		c, ok := compare(actual, cond.Value)
		return ok && c >= 0
	case OpLT:
		c, ok := compare(actual, cond.Value)
		return ok && c < 0
	case OpLTE:
		c, ok := compare(actual, cond.Value)
		return ok && c <= 0
	case OpRegex:
		s, ok := actual.(string)
		pattern, pok := cond.Value.(string)
		if !ok || !pok {
			return false
		}
		re := m.compile(pattern)
		return re != nil && re.MatchString(s)
	default:
		return false
	}
}

func equal(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	if b == nil {
		return false
	}
	if as, ok := toSlice(a); ok {
		bs, ok := toSlice(b)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func contains(actual, needle any) bool {
	if s, ok := actual.(string); ok {
		sub, ok := needle.(string)
		return ok && strings.Contains(s, sub)
	}
	if list, ok := toSlice(actual); ok {
		return memberOf(needle, list)
	}
	return false
}

func memberOf(v any, list []any) bool {
	for _, item := range list {
		if equal(v, item) {
			return true
		}
	}
	return false
}

type valueKind int

const (
	kindNil valueKind = iota
	kindNumber
	kindString
	kindBool
	kindList
	kindOther
)

func kindOf(v any) valueKind {
	if v == nil {
		return kindNil
	}
	if _, ok := toFloat(v); ok {
		return kindNumber
	}
	switch v.(type) {
	case string:
		return kindString
	case bool:
		return kindBool
	}
	if _, ok := toSlice(v); ok {
		return kindList
	}
	return kindOther
}

func sameKind(a, b any) bool {
	k := kindOf(a)
	return k != kindNil && k == kindOf(b)
}

func hasKind(list []any, k valueKind) bool {
	if k == kindNil {
		return false
	}
	for _, item := range list {
		if kindOf(item) == k {
			return true
		}
	}
	return false
}

func compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	as, ok := a.(string)
	if !ok {
		return 0, false
	}
	bs, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(as, bs), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch tv := v.(type) {
	case nil:
		return nil, false
	case []any:
		return tv, true
	case []string:
		out := make([]any, len(tv))
		for i, s := range tv {
			out[i] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// compile returns the compiled pattern, or nil when it is invalid.
// Invalid patterns are cached as nil too.
func (m *Matcher) compile(pattern string) *regexp.Regexp {
	if m == nil || m.patterns == nil {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil
		}
		return re
	}
	if re, ok := m.patterns.Get(pattern); ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	m.patterns.Set(pattern, re, 0)
	return re
}
