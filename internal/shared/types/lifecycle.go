package types

import "fmt"

// Lifecycle is a transition requested of an ability and later acknowledged
type Lifecycle int

const (
	LifecycleActive Lifecycle = iota + 1
	LifecycleBackground
	LifecycleDestroy
)

// String returns the string representation of the lifecycle kind
func (l Lifecycle) String() string {
	switch l {
	case LifecycleActive:
		return "active"
	case LifecycleBackground:
		return "background"
	case LifecycleDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

// ParseLifecycle converts a wire name into a Lifecycle
func ParseLifecycle(s string) (Lifecycle, error) {
	switch s {
	case "active":
		return LifecycleActive, nil
	case "background":
		return LifecycleBackground, nil
	case "destroy", "stop":
		return LifecycleDestroy, nil
	default:
		return 0, fmt.Errorf("unknown lifecycle %q", s)
	}
}

// Command is the instruction posted to a worker task's queue
type Command struct {
	Kind       Lifecycle
	Token      uint16
	BundleName string
	Path       string
	Payload    []byte
}

// PayloadLength returns the length of the carried payload
func (c Command) PayloadLength() int {
	return len(c.Payload)
}
