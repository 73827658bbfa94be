package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartContinuesTrace(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	root, ctx := tracer.Start(context.Background(), "root")
	child, childCtx := tracer.Start(ctx, "child")

	assert.NotEmpty(t, root.TraceID)
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Equal(t, child.SpanID, SpanIDFrom(childCtx))

	headers := http.Header{}
	Inject(childCtx, headers.Set)
	traceID, spanID := Extract(headers)
	assert.Equal(t, root.TraceID, traceID)
	assert.Equal(t, child.SpanID, spanID)

	tracer.Finish(child)
	tracer.Finish(root)
	assert.False(t, root.StartTime.IsZero())
}

func TestFinishAfterCloseIsSafe(t *testing.T) {
	tracer := New("test", nil)
	tracer.Close()
	tracer.Close()

	span, _ := tracer.Start(context.Background(), "late")
	assert.NotPanics(t, func() { tracer.Finish(span) })
}

func TestHTTPMiddlewarePropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("test", nil)
	defer tracer.Close()

	var seen TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/ping", func(c *gin.Context) {
		seen = TraceIDFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderTraceID, "trace-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, TraceID("trace-1"), seen)
	assert.Equal(t, "trace-1", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))
}
