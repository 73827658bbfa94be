package ability

import "math"

// tokenGenerator issues record tokens. It never returns LauncherToken and
// wraps back to 1 before reaching math.MaxUint16.
type tokenGenerator struct {
	last uint16
}

func (g *tokenGenerator) next() uint16 {
	if g.last == math.MaxUint16-1 {
		g.last = LauncherToken
	}
	g.last++
	return g.last
}
