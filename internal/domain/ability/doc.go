// Package ability schedules ability lifecycles.
//
// The home unit (launcher) is a native object called directly. Every other
// ability runs in a worker task fed through a bounded command queue. A
// Manager keeps the record registry (List) and the foreground Stack and
// moves records between stop, inactive, active and background, changing
// state only when a unit acknowledges a transition.
//
// Manager is not safe for concurrent use. Loop runs it on one goroutine and
// queues acknowledgements from workers and the launcher.
package ability
