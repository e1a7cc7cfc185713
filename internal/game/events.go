package game

import (
	"github.com/KDT2006/chaser/internal/grid"
	"github.com/KDT2006/chaser/internal/notify"
	"github.com/KDT2006/chaser/internal/protocol"
	"github.com/KDT2006/chaser/internal/session"
)

// TeamEvent carries the name a side sent when it connected.
type TeamEvent struct {
	Side grid.Side
	Name string
}

// ItemEvent carries a side's new item count.
type ItemEvent struct {
	Side  grid.Side
	Count int
}

// GridEvent is raised after every action that changed the floor. Rows is
// a private copy.
type GridEvent struct {
	Turn      int
	Side      grid.Side
	Command   protocol.Command
	Rows      [][]grid.Cell
	Positions [2]grid.Point
}

// Events groups the feeds a match publishes on. Handlers run on the
// match goroutine right after the change and must hand work off rather
// than block.
type Events struct {
	Connection notify.Feed[session.ConnectionEvent]
	TeamName   notify.Feed[TeamEvent]
	Turn       notify.Feed[int]
	Items      notify.Feed[ItemEvent]
	Grid       notify.Feed[GridEvent]
	Finished   notify.Feed[Outcome]
}
