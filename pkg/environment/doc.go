// Package environment resolves and propagates the application environment
// (development, staging, production, test).
//
// The typed string Environment has predefined constants and a Parse helper
// that normalizes the usual aliases ("prod", "dev", "stage").
//
// Detect resolves the current environment from, in order:
//
//  1. an explicit value (typically from configuration),
//  2. the first non-empty process variable in EnvVars,
//  3. a hostname heuristic: local, private-network and staging-like hosts are
//     non-production, anything else is production.
//
// The heuristic fails towards production: an unknown hostname disables
// environment-guarded features such as local overrides.
//
// # Usage
//
//	env := environment.Detect(cfg.Environment)
//	if env.IsProduction() {
//	    // refuse developer tooling
//	}
//
// Propagate through a context:
//
//	ctx = environment.WithContext(ctx, environment.Staging)
//	env := environment.FromContext(ctx)
package environment
