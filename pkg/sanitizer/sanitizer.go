package sanitizer

import (
	"cmp"
	"encoding/json"
	"log/slog"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/dmitrymomot/featurekit/pkg/logger"
)

// Target selects the size budget applied by SanitizeForTransport.
type Target int

const (
	ForURL Target = iota
	ForBody
)

func (t Target) String() string {
	if t == ForURL {
		return "url"
	}
	return "body"
}

// Sanitizer prepares evaluation contexts for transmission to remote
// evaluators. It is safe for concurrent use.
type Sanitizer struct {
	strict    bool
	allowed   map[string]struct{}
	maxURL    int
	maxBody   int
	maxString int
	maxArray  int
	warnings  bool
	logger    *slog.Logger
}

// New creates a Sanitizer with the given options.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		maxURL:    DefaultMaxURLSize,
		maxBody:   DefaultMaxBodySize,
		maxString: DefaultMaxStringLength,
		maxArray:  DefaultMaxArrayLength,
		warnings:  true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SanitizeForTransport returns a cleaned copy of ctx that fits the target's
// size budget. The input is never modified. It returns false when the
// context cannot be made small enough or cannot be encoded.
func (s *Sanitizer) SanitizeForTransport(ctx map[string]any, target Target) (map[string]any, bool) {
	clean := s.Sanitize(ctx)

	switch target {
	case ForURL:
		out, err := s.fitURL(clean)
		if err != nil {
			s.warn("context dropped from url", target, err)
			return nil, false
		}
		return out, true
	default:
		out, err := s.fitBody(clean)
		if err != nil {
			s.warn("context dropped from body", target, err)
			return nil, false
		}
		return out, true
	}
}

// Sanitize applies the key filters and value limits without size checks.
func (s *Sanitizer) Sanitize(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if s.strict {
			if _, ok := s.allowed[k]; !ok {
				continue
			}
		}
		if dropKey(k) {
			continue
		}
		if cv, ok := s.value(v, 1); ok {
			out[k] = cv
		}
	}
	return out
}

func dropKey(k string) bool {
	return IsForbidden(k) || IsSensitive(k)
}

func (s *Sanitizer) fitURL(ctx map[string]any) (map[string]any, error) {
	size, err := urlSize(ctx)
	if err != nil {
		return nil, err
	}
	if size <= s.maxURL {
		return ctx, nil
	}

	reduced := essentials(ctx)
	size, err = urlSize(reduced)
	if err != nil {
		return nil, err
	}
	if size > s.maxURL {
		return nil, ErrURLTooLarge
	}
	return reduced, nil
}

// fitBody drops top-level fields, longest key first, until the encoding fits.
func (s *Sanitizer) fitBody(ctx map[string]any) (map[string]any, error) {
	size, err := jsonSize(ctx)
	if err != nil {
		return nil, err
	}
	if size <= s.maxBody {
		return ctx, nil
	}

	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	for _, k := range keys {
		delete(ctx, k)
		if size, err = jsonSize(ctx); err != nil {
			return nil, err
		}
		if size <= s.maxBody {
			return ctx, nil
		}
	}
	return nil, ErrBodyTooLarge
}

// essentials keeps the essential top-level keys and, inside a nested
// attributes map, the essential attribute keys.
func essentials(ctx map[string]any) map[string]any {
	out := make(map[string]any)
	for _, k := range essentialKeys {
		if v, ok := ctx[k]; ok {
			out[k] = v
		}
	}
	if attrs, ok := ctx["attributes"].(map[string]any); ok {
		reduced := make(map[string]any)
		for _, k := range essentialKeys {
			if v, ok := attrs[k]; ok {
				reduced[k] = v
			}
		}
		if len(reduced) > 0 {
			out["attributes"] = reduced
		}
	}
	return out
}

func jsonSize(v any) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, ErrNotEncodable
	}
	return len(b), nil
}

func urlSize(v any) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, ErrNotEncodable
	}
	return len(url.QueryEscape(string(b))), nil
}

// value returns a JSON-safe copy of v. The second result is false for
// values that must be dropped.
func (s *Sanitizer) value(v any, depth int) (any, bool) {
	if depth > maxDepth {
		return nil, false
	}

	switch tv := v.(type) {
	case nil:
		return nil, true
	case string:
		return s.truncate(tv), true
	case bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return tv, true
	case map[string]any:
		return s.object(tv, depth), true
	case []any:
		return s.array(reflect.ValueOf(tv), depth), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128,
		reflect.UnsafePointer, reflect.Invalid:
		return nil, false
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, true
		}
		return s.value(rv.Elem().Interface(), depth+1)
	case reflect.String:
		return s.truncate(rv.String()), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, true
		}
		return s.array(rv, depth), true
	case reflect.Map:
		m, ok := stringMap(rv)
		if !ok {
			return nil, false
		}
		return s.object(m, depth), true
	default:
		generic, ok := viaJSON(v)
		if !ok {
			return nil, false
		}
		return s.value(generic, depth+1)
	}
}

// stringMap copies a map with string keys into a generic map.
func stringMap(rv reflect.Value) (map[string]any, bool) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

// viaJSON normalizes structs and other encodable types through JSON so
// their field names pass the same key filters.
func viaJSON(v any) (any, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, false
	}
	return generic, true
}

func (s *Sanitizer) object(m map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if dropKey(k) {
			continue
		}
		if cv, ok := s.value(v, depth+1); ok {
			out[k] = cv
		}
	}
	return out
}

func (s *Sanitizer) array(rv reflect.Value, depth int) []any {
	n := min(rv.Len(), s.maxArray)
	out := make([]any, 0, n)
	for i := range n {
		if cv, ok := s.value(rv.Index(i).Interface(), depth+1); ok {
			out = append(out, cv)
		}
	}
	return out
}

func (s *Sanitizer) truncate(str string) string {
	if utf8.RuneCountInString(str) <= s.maxString {
		return str
	}
	runes := []rune(str)
	return string(runes[:s.maxString]) + ellipsis
}

func (s *Sanitizer) warn(msg string, target Target, err error) {
	if !s.warnings {
		return
	}
	s.logger.Warn(msg,
		logger.Component("sanitizer"),
		slog.String("target", target.String()),
		logger.Error(err),
	)
}

// Validate scans ctx for forbidden and sensitive keys without modifying it
// and returns one warning per offending key with its full dotted path.
// Array elements appear as numeric path segments.
func Validate(ctx map[string]any) []string {
	var warnings []string
	validateMap(ctx, "", 0, &warnings)
	return warnings
}

func validateMap(m map[string]any, prefix string, depth int, warnings *[]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		switch {
		case IsForbidden(k):
			*warnings = append(*warnings, "forbidden key at "+p)
		case IsSensitive(k):
			*warnings = append(*warnings, "sensitive key pattern at "+p)
		}
		validateDepth(m[k], p, depth+1, warnings)
	}
}

func validateDepth(v any, p string, depth int, warnings *[]string) {
	if depth > maxDepth {
		return
	}
	switch tv := v.(type) {
	case nil, string, bool, json.Number:
		return
	case map[string]any:
		validateMap(tv, p, depth, warnings)
		return
	case []any:
		for i, item := range tv {
			validateDepth(item, p+"."+strconv.Itoa(i), depth+1, warnings)
		}
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !rv.IsNil() {
			validateDepth(rv.Elem().Interface(), p, depth+1, warnings)
		}
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			validateDepth(rv.Index(i).Interface(), p+"."+strconv.Itoa(i), depth+1, warnings)
		}
	case reflect.Map:
		if m, ok := stringMap(rv); ok {
			validateMap(m, p, depth, warnings)
		}
	case reflect.Struct:
		if generic, ok := viaJSON(v); ok {
			validateDepth(generic, p, depth+1, warnings)
		}
	}
}
