// Package server assembles the ability manager: configuration, logging,
// metrics, the bundle catalog, the worker host, the lifecycle controller
// and its loop, the launcher, and the HTTP and WebSocket surfaces.
package server
