/*
Package monitoring provides Prometheus metrics for the ability manager.

Each Metrics value owns a private registry so independent instances can
coexist in one process. All recording methods accept a nil receiver.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.RecordDispatch("worker", "active", "ok")
	metrics.SetRegistrySize(3)
*/
package monitoring
