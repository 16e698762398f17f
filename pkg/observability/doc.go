/*
Package observability turns tree lifecycle hooks into metrics and structured logs.

Metrics registers Prometheus collectors and exposes them as domain.LifecycleHooks;
LogHooks does the same for a slog.Logger. Combine several with Chain:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Chain(metrics.Hooks(), observability.LogHooks(logger))
	tree, err := detailtree.New(dir, repo, detailtree.WithLifecycleHooks(hooks))
*/
package observability
