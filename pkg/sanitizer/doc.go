// Package sanitizer guards evaluation contexts before they leave the
// process, for example when a client forwards the context to a remote
// evaluator in a query string or request body.
//
// The pipeline drops keys from a hardcoded forbidden set, then keys whose
// names match a sensitive pattern (password, secret, token, key, credit,
// ssn, bank, private, auth; case-insensitive). Strict mode additionally
// drops top-level keys outside an allow-list. Values are copied
// recursively: strings are cut at 200 runes with a "..." marker, arrays
// are capped at 10 elements, and functions, channels and complex numbers
// are removed.
//
// Size budgets are measured on the JSON encoding:
//
//   - ForURL (2 KiB, measured after query escaping): an oversized context
//     is reduced to its essential fields, and rejected if still too big.
//   - ForBody (10 KiB): top-level fields are dropped longest key first
//     until the encoding fits.
//
// Example:
//
//	s := sanitizer.New(sanitizer.WithStrict())
//	params, ok := s.SanitizeForTransport(ctx, sanitizer.ForURL)
//	if !ok {
//		// evaluate locally instead
//	}
//
// Validate performs the same key scan without modifying the input and is
// intended for development-time auditing.
package sanitizer
