// Package feature implements feature flag evaluation: targeting rules,
// deterministic percentage rollouts and weighted variants.
//
// The Engine evaluates one flag at a time against an EvaluationContext and
// never returns an error. The outcome is described by the result Reason,
// chosen in fixed precedence:
//
//	not_found > disabled > override > rule_match > percentage_rollout > default
//
// Storage or matcher failures produce ReasonError with an ErrorCode and the
// caller default.
//
// # Rules
//
// Rules are checked in ascending Priority. Each rule holds a Condition tree
// built from leaves (attribute, operator, value) and composite all/any
// nodes:
//
//	rule := feature.Rule{
//		ID:        "pro-users",
//		Enabled:   true,
//		Condition: feature.Leaf("attributes.plan", feature.OpEquals, "pro"),
//		Value:     true,
//	}
//
// # Rollouts
//
// Users are assigned to one of 100 buckets by hashing the flag key and the
// user id with FNV-1a. The same user always lands in the same bucket for a
// flag, and different flags distribute users independently. Variants split
// the same bucket space by weight in declaration order.
//
// # Client
//
// Client wraps the engine with local overrides, a session-aware result
// cache, background polling and batched analytics:
//
//	storage, _ := feature.NewMemoryStorage(flags...)
//	client := feature.NewClient(storage, feature.WithLogger(log))
//	if err := client.Start(ctx); err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
//	res := client.Evaluate(ctx, "new-checkout", feature.EvaluationContext{UserID: "u1"}, false)
//
// MemoryStorage is a complete in-memory Storage suitable for tests and
// single-process deployments. See pkg/flagfile for a YAML file backend.
package feature
