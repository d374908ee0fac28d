package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Generate returns a 32-character hex fingerprint for an evaluation
// subject: user, organization and its free-form attributes.
//
// Map keys are serialized in sorted order, so two contexts with equal
// content always produce the same fingerprint regardless of how their
// attribute maps were built.
func Generate(userID, organizationID string, attributes map[string]any) string {
	components := []string{
		"u=" + userID,
		"o=" + organizationID,
		"a=" + canonical(attributes),
	}
	return sum(strings.Join(components, "|"))
}

// Hash returns a fingerprint of any JSON-serializable value.
// Values that cannot be serialized fall back to their %#v representation.
func Hash(v any) string {
	return sum(canonical(v))
}

func canonical(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:16])
}
