package feature

import (
	"reflect"
	"strconv"
	"strings"
)

// AnonymousUserID is used for bucketing when the context carries no user.
const AnonymousUserID = "anonymous"

// EvaluationContext describes who a flag is evaluated for.
// Attributes is free-form; read it through Lookup rather than assuming keys.
type EvaluationContext struct {
	UserID         string         `json:"userId,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// EffectiveUserID returns UserID, or AnonymousUserID when it is empty.
func (c EvaluationContext) EffectiveUserID() string {
	if c.UserID == "" {
		return AnonymousUserID
	}
	return c.UserID
}

// Lookup resolves a dotted path such as "attributes.plan" or
// "attributes.address.country". The first segment may name a context field
// (userId, organizationId, sessionId, attributes); any other first segment
// is resolved inside Attributes, so "plan" and "attributes.plan" are
// equivalent. Numeric segments index into arrays.
//
// Missing keys, nil values and type mismatches along the path all report
// false. Lookup never panics.
func (c EvaluationContext) Lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")

	var cur any
	switch segments[0] {
	case "userId":
		if len(segments) > 1 {
			return nil, false
		}
		return c.EffectiveUserID(), true
	case "organizationId":
		if len(segments) > 1 || c.OrganizationID == "" {
			return nil, false
		}
		return c.OrganizationID, true
	case "sessionId":
		if len(segments) > 1 || c.SessionID == "" {
			return nil, false
		}
		return c.SessionID, true
	case "attributes":
		if len(segments) == 1 {
			return c.Attributes, c.Attributes != nil
		}
		cur = c.Attributes
		segments = segments[1:]
	default:
		cur = c.Attributes
	}

	for _, seg := range segments {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Map returns the context as a plain map, the shape used on the wire.
// The session id is never included.
func (c EvaluationContext) Map() map[string]any {
	m := make(map[string]any, 3)
	m["userId"] = c.EffectiveUserID()
	if c.OrganizationID != "" {
		m["organizationId"] = c.OrganizationID
	}
	if len(c.Attributes) > 0 {
		m["attributes"] = c.Attributes
	}
	return m
}

func child(v any, seg string) (any, bool) {
	switch tv := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		out, ok := tv[seg]
		return out, ok
	case map[string]string:
		out, ok := tv[seg]
		return out, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(tv) {
			return nil, false
		}
		return tv[i], true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
		if !out.IsValid() {
			return nil, false
		}
		return out.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
		return child(rv.Elem().Interface(), seg)
	}
	return nil, false
}
