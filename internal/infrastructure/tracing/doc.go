/*
Package tracing provides lightweight request tracing.

Every HTTP request gets a span; its trace continues through the X-Trace-ID
and X-Span-ID headers, both inbound and on calls made to remote devices.
Finished spans are logged by a background collector.

	tracer := tracing.New("abilityms", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.Start(ctx, "remote.start")
	defer tracer.Finish(span)
	tracing.Inject(ctx, req.Header.Set)
*/
package tracing
