package sanitizer

import (
	"regexp"
	"strings"
)

// sensitivePattern catches key names that look like credentials or
// financial data. It over-matches on purpose, e.g. "monkey" or "author".
var sensitivePattern = regexp.MustCompile(`(?i)(password|secret|token|key|credit|ssn|bank|private|auth)`)

// forbiddenKeys are dropped regardless of configuration. Compared lowercased.
var forbiddenKeys = map[string]struct{}{
	"password":      {},
	"passwd":        {},
	"pwd":           {},
	"secret":        {},
	"token":         {},
	"accesstoken":   {},
	"refreshtoken":  {},
	"idtoken":       {},
	"apikey":        {},
	"api_key":       {},
	"privatekey":    {},
	"ssn":           {},
	"creditcard":    {},
	"cardnumber":    {},
	"cvv":           {},
	"cvc":           {},
	"pin":           {},
	"bankaccount":   {},
	"iban":          {},
	"authorization": {},
	"cookie":        {},
	"sessionid":     {},
	"session_id":    {},
}

// essentialKeys survive URL size reduction.
var essentialKeys = []string{"userId", "organizationId", "role", "plan", "device", "environment"}

var defaultAllowedKeys = []string{
	"userId",
	"organizationId",
	"attributes",
	"role",
	"plan",
	"device",
	"environment",
	"country",
	"locale",
	"version",
}

// IsForbidden reports whether key is in the hardcoded forbidden set.
func IsForbidden(key string) bool {
	_, ok := forbiddenKeys[strings.ToLower(key)]
	return ok
}

// IsSensitive reports whether key matches the sensitive-name pattern.
func IsSensitive(key string) bool {
	return sensitivePattern.MatchString(key)
}
