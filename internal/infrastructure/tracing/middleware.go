package tracing

import (
	"github.com/gin-gonic/gin"
)

// HTTPMiddleware traces each request, continuing a trace named in the
// request headers
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID, parentID := Extract(c.Request.Header)
		ctx := WithSpan(c.Request.Context(), traceID, parentID)

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.Start(ctx, c.Request.Method+" "+name)
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderTraceID, string(span.TraceID))
		c.Header(HeaderSpanID, string(span.SpanID))

		c.Next()

		span.StatusCode = c.Writer.Status()
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		tracer.Finish(span)
	}
}
