// Package types provides shared value types for the ability manager.
//
// Core Types:
//   - State: confirmed record state (stop, inactive, active, background)
//   - Lifecycle: requested transition and its acknowledgement kind
//   - Command: instruction posted to a worker task queue
//   - Intent: start request crossing the service boundary
//   - Element: ability identity returned by top-ability queries
//   - Event: lifecycle notification for observers
//
// Example Usage:
//
//	intent := &types.Intent{
//	    BundleName: "com.example.clock",
//	    Data:       []byte(`{"alarm":"07:00"}`),
//	}
package types
