// Package permission decides whether a start request may proceed.
package permission

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/time/rate"
)

var (
	ErrDenied      = errors.New("bundle is denied")
	ErrRateLimited = errors.New("bundle start rate exceeded")
)

// Config configures the checker
type Config struct {
	// Deny holds glob patterns over bundle names, e.g. "com.untrusted.*"
	Deny []string
	// StartRPS limits starts per bundle; zero disables the limit
	StartRPS float64
	Burst    int
}

// Checker applies deny patterns and per-bundle start rates
type Checker struct {
	deny  []string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewChecker validates cfg and builds a checker
func NewChecker(cfg Config) (*Checker, error) {
	for _, p := range cfg.Deny {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid deny pattern %q", p)
		}
	}

	c := &Checker{
		deny:     append([]string(nil), cfg.Deny...),
		limit:    rate.Inf,
		burst:    cfg.Burst,
		limiters: make(map[string]*rate.Limiter),
	}
	if cfg.StartRPS > 0 {
		c.limit = rate.Limit(cfg.StartRPS)
		if c.burst < 1 {
			c.burst = 1
		}
	}
	return c, nil
}

// CheckResponse returns nil when name may be started now
func (c *Checker) CheckResponse(name string) error {
	for _, p := range c.deny {
		if ok, _ := doublestar.Match(p, name); ok {
			return fmt.Errorf("%w: %s matches %q", ErrDenied, name, p)
		}
	}
	if c.limit == rate.Inf {
		return nil
	}
	if !c.limiter(name).Allow() {
		return fmt.Errorf("%w: %s", ErrRateLimited, name)
	}
	return nil
}

func (c *Checker) limiter(name string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[name]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[name] = l
	}
	return l
}
