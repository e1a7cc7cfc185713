package game

import "github.com/KDT2006/chaser/internal/grid"

// Player is the match-side view of one connected team.
type Player struct {
	Side      grid.Side
	Name      string
	Connected bool
	Items     int
}
