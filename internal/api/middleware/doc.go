// Package middleware provides the gin middleware of the control API.
//
//   - CORS: cross-origin access with the request and trace headers exposed
//   - RateLimit: per-IP token buckets, idle clients swept, ack routes exempt
//   - RequestID: X-Request-ID assignment
//   - Logger: one zap line per request
//
// Example:
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
