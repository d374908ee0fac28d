// Package fingerprint derives stable identifiers for evaluation contexts.
//
// The feature client keys its result cache by flag key plus the fingerprint
// of the context the flag was evaluated for, and compares flag-batch
// fingerprints to detect changes during polling.
//
//	fp := fingerprint.Generate(evalCtx.UserID, evalCtx.OrganizationID, evalCtx.Attributes)
//	key := cache.Key(flagKey, fp)
//
// Components are combined and fed into SHA-256. The first 16 bytes are
// returned as a 32-character hex string.
package fingerprint
