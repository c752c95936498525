/*
Package observability turns app lifecycle hooks into Prometheus metrics and
structured log lines.

Both are exposed as domain.Hooks and combine with domain.MergeHooks:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	app, err := chainlens.New(root, chainlens.WithHooks(
		metrics.Hooks(),
		observability.LogHooks(logger),
	))
*/
package observability
