package sanitizer_test

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/featurekit/pkg/logger"
	"github.com/dmitrymomot/featurekit/pkg/sanitizer"
)

func newSanitizer(opts ...sanitizer.Option) *sanitizer.Sanitizer {
	return sanitizer.New(append([]sanitizer.Option{sanitizer.WithLogger(logger.Discard())}, opts...)...)
}

func TestSanitizeForTransport_DropsSensitiveKeys(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	in := map[string]any{
		"userId":   "u1",
		"password": "hunter2",
		"apiKey":   "abc",
		"PIN":      "1234",
		"plan":     "pro",
		"attributes": map[string]any{
			"country":        "DE",
			"authToken":      "x",
			"creditLimit":    100,
			"nested":         map[string]any{"bank_account": "123", "ok": true},
			"orders":         []any{map[string]any{"id": 1, "secretCode": "s"}},
			"monkeyBusiness": "dropped by pattern",
		},
	}

	out, ok := s.SanitizeForTransport(in, sanitizer.ForBody)
	require.True(t, ok)

	assert.Equal(t, "u1", out["userId"])
	assert.Equal(t, "pro", out["plan"])
	assert.NotContains(t, out, "password")
	assert.NotContains(t, out, "apiKey")
	assert.NotContains(t, out, "PIN")

	attrs := out["attributes"].(map[string]any)
	assert.Equal(t, "DE", attrs["country"])
	assert.NotContains(t, attrs, "authToken")
	assert.NotContains(t, attrs, "creditLimit")
	assert.NotContains(t, attrs, "monkeyBusiness")
	assert.Equal(t, map[string]any{"ok": true}, attrs["nested"])
	assert.Equal(t, []any{map[string]any{"id": 1}}, attrs["orders"])

	// input untouched
	assert.Equal(t, "hunter2", in["password"])
	assert.Contains(t, in["attributes"].(map[string]any), "authToken")
}

func TestSanitizeForTransport_NeverLeaksNestedKeys(t *testing.T) {
	t.Parallel()

	// build a deep structure with sensitive keys at every level
	root := map[string]any{}
	cur := root
	for range 8 {
		next := map[string]any{}
		cur["password"] = "x"
		cur["sessionToken"] = "y"
		cur["items"] = []any{map[string]any{"privateNote": "z", "v": 1}}
		cur["child"] = next
		cur = next
	}

	out, ok := newSanitizer().SanitizeForTransport(root, sanitizer.ForBody)
	require.True(t, ok)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	encoded := string(b)
	for _, key := range []string{"password", "sessionToken", "privateNote"} {
		assert.NotContains(t, encoded, key)
	}
	assert.Contains(t, encoded, `"v":1`)
}

func TestSanitizeForTransport_ValueLimits(t *testing.T) {
	t.Parallel()

	s := newSanitizer()
	long := strings.Repeat("a", 250)
	items := make([]any, 15)
	for i := range items {
		items[i] = i
	}
	in := map[string]any{
		"bio":      long,
		"items":    items,
		"tags":     []string{"a", "b"},
		"callback": func() {},
		"ch":       make(chan int),
		"cplx":     complex(1, 2),
		"ptr":      &struct{ Name string }{Name: "n"},
		"when":     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"nilValue": nil,
	}

	out, ok := s.SanitizeForTransport(in, sanitizer.ForBody)
	require.True(t, ok)

	assert.Equal(t, strings.Repeat("a", 200)+"...", out["bio"])
	assert.Len(t, out["items"], 10)
	assert.Equal(t, []any{"a", "b"}, out["tags"])
	assert.NotContains(t, out, "callback")
	assert.NotContains(t, out, "ch")
	assert.NotContains(t, out, "cplx")
	assert.Equal(t, map[string]any{"Name": "n"}, out["ptr"])
	assert.Equal(t, "2025-01-02T03:04:05Z", out["when"])
	assert.Contains(t, out, "nilValue")
	assert.Nil(t, out["nilValue"])

	_, err := json.Marshal(out)
	assert.NoError(t, err)
}

func TestSanitizeForTransport_Strict(t *testing.T) {
	t.Parallel()

	in := map[string]any{"userId": "u", "plan": "pro", "favoriteColor": "blue"}

	out, ok := newSanitizer(sanitizer.WithStrict()).SanitizeForTransport(in, sanitizer.ForBody)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"userId": "u", "plan": "pro"}, out)

	out, ok = newSanitizer(sanitizer.WithStrict("favoriteColor")).SanitizeForTransport(in, sanitizer.ForBody)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"favoriteColor": "blue"}, out)
}

func TestSanitizeForTransport_URLReduction(t *testing.T) {
	t.Parallel()

	s := newSanitizer(sanitizer.WithMaxURLSize(300))
	in := map[string]any{
		"userId":         "u1",
		"organizationId": "o1",
		"role":           "admin",
		"notes":          strings.Repeat("n", 150),
		"history":        strings.Repeat("h", 150),
		"attributes": map[string]any{
			"plan":  "pro",
			"extra": strings.Repeat("e", 150),
		},
	}

	out, ok := s.SanitizeForTransport(in, sanitizer.ForURL)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"userId":         "u1",
		"organizationId": "o1",
		"role":           "admin",
		"attributes":     map[string]any{"plan": "pro"},
	}, out)

	b, _ := json.Marshal(out)
	assert.LessOrEqual(t, len(url.QueryEscape(string(b))), 300)
}

func TestSanitizeForTransport_URLTooLarge(t *testing.T) {
	t.Parallel()

	s := newSanitizer(sanitizer.WithMaxURLSize(50))
	in := map[string]any{"userId": strings.Repeat("u", 150)}

	out, ok := s.SanitizeForTransport(in, sanitizer.ForURL)
	assert.False(t, ok)
	assert.Nil(t, out)
}

func TestSanitizeForTransport_URLFitsUnchanged(t *testing.T) {
	t.Parallel()

	in := map[string]any{"userId": "u1", "favoriteColor": "blue"}
	out, ok := newSanitizer().SanitizeForTransport(in, sanitizer.ForURL)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestSanitizeForTransport_BodyDropsLongestKeysFirst(t *testing.T) {
	t.Parallel()

	s := newSanitizer(sanitizer.WithMaxBodySize(120))
	in := map[string]any{
		"id":                  "1",
		"plan":                "pro",
		"veryLongDescriptive": strings.Repeat("x", 40),
		"mediumLength":        strings.Repeat("y", 40),
	}

	out, ok := s.SanitizeForTransport(in, sanitizer.ForBody)
	require.True(t, ok)
	assert.NotContains(t, out, "veryLongDescriptive")
	assert.Contains(t, out, "mediumLength")
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "plan")

	b, _ := json.Marshal(out)
	assert.LessOrEqual(t, len(b), 120)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	s := sanitizer.New(append(sanitizer.FromConfig(sanitizer.Config{
		Strict:          true,
		AllowedKeys:     []string{"bio"},
		MaxStringLength: 5,
	}), sanitizer.WithLogger(logger.Discard()))...)

	out, ok := s.SanitizeForTransport(map[string]any{"bio": "abcdefgh", "plan": "pro"}, sanitizer.ForBody)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"bio": "abcde..."}, out)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"password": "x",
		"userId":   "u",
		"attributes": map[string]any{
			"apiToken": "t",
			"profile":  map[string]any{"ssn": "123"},
			"cards":    []any{map[string]any{"creditCard": "4111"}},
		},
	}

	warnings := sanitizer.Validate(in)
	assert.Equal(t, []string{
		"sensitive key pattern at attributes.apiToken",
		"forbidden key at attributes.cards.0.creditCard",
		"forbidden key at attributes.profile.ssn",
		"forbidden key at password",
	}, warnings)

	assert.Contains(t, in, "password", "validate does not mutate")
	assert.Empty(t, sanitizer.Validate(map[string]any{"plan": "pro"}))
}

func TestValidate_TypedContainers(t *testing.T) {
	t.Parallel()

	type profile struct {
		Email  string `json:"email"`
		APIKey string `json:"apiKey"`
	}

	in := map[string]any{
		"headers": map[string]string{"authorization": "Bearer x", "accept": "json"},
		"items":   []map[string]any{{"password": "p"}, {"sku": "a"}},
		"profile": &profile{Email: "a@b.c", APIKey: "k"},
		"tags":    []string{"beta"},
	}

	assert.Equal(t, []string{
		"forbidden key at headers.authorization",
		"forbidden key at items.0.password",
		"forbidden key at profile.apiKey",
	}, sanitizer.Validate(in))

	out, ok := newSanitizer().SanitizeForTransport(in, sanitizer.ForBody)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"accept": "json"}, out["headers"])
	assert.Equal(t, []any{map[string]any{}, map[string]any{"sku": "a"}}, out["items"])
	assert.Equal(t, map[string]any{"email": "a@b.c"}, out["profile"])
}

func TestSanitizeForTransport_DropsSessionID(t *testing.T) {
	t.Parallel()

	out, ok := newSanitizer().SanitizeForTransport(map[string]any{
		"userId":    "u1",
		"sessionId": "sess-1",
		"attributes": map[string]any{
			"session_id": "sess-1",
			"plan":       "pro",
		},
	}, sanitizer.ForURL)
	require.True(t, ok)
	assert.NotContains(t, out, "sessionId")
	assert.Equal(t, map[string]any{"plan": "pro"}, out["attributes"])
	assert.Equal(t, []string{"forbidden key at sessionId"}, sanitizer.Validate(map[string]any{"sessionId": "s"}))
}

func TestKeyClassifiers(t *testing.T) {
	t.Parallel()

	assert.True(t, sanitizer.IsForbidden("Password"))
	assert.True(t, sanitizer.IsForbidden("api_key"))
	assert.False(t, sanitizer.IsForbidden("plan"))

	assert.True(t, sanitizer.IsSensitive("X-Auth-Header"))
	assert.True(t, sanitizer.IsSensitive("privateNotes"))
	assert.False(t, sanitizer.IsSensitive("country"))
}
