// Package ws streams controller lifecycle events to WebSocket clients.
//
// Clients connect to /events, optionally with ?bundle=<name> to narrow the
// stream, and may send {"type":"subscribe","bundle_name":...} to change
// the filter or {"type":"ping"} to check liveness.
package ws
