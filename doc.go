// Package featurekit wires the feature flag runtime from configuration.
//
// It assembles the pieces in pkg/ into a ready client: a flag storage
// (YAML file or in-memory), optional Redis persistence for the result cache
// and local overrides, Prometheus metrics and an environment-aware logger.
//
//	cfg, err := featurekit.LoadConfig()
//	if err != nil {
//		return err
//	}
//	kit, err := featurekit.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer kit.Close(context.Background())
//
//	if err := kit.Start(ctx); err != nil {
//		return err
//	}
//	res := kit.Client.Evaluate(ctx, "new-checkout", feature.EvaluationContext{UserID: "u1"}, false)
//
// Everything can also be used directly; see pkg/feature for the engine and
// client.
package featurekit
