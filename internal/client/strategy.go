package client

import (
	"math/rand"

	"github.com/KDT2006/chaser/internal/grid"
	"github.com/KDT2006/chaser/internal/protocol"
)

// Strategy picks the next command from the current surroundings.
type Strategy interface {
	Next(st protocol.Status) protocol.Command
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(protocol.Status) protocol.Command

func (f StrategyFunc) Next(st protocol.Status) protocol.Command { return f(st) }

// neighbour index of each direction in a status
var neighbour = map[grid.Direction]int{
	grid.Up:    1,
	grid.Left:  3,
	grid.Right: 5,
	grid.Down:  7,
}

// Greedy traps an adjacent opponent, otherwise picks up an adjacent item,
// otherwise wanders. It searches upwards when boxed in.
type Greedy struct {
	rnd *rand.Rand
}

func NewGreedy(seed int64) *Greedy {
	return &Greedy{rnd: rand.New(rand.NewSource(seed))}
}

func (g *Greedy) Next(st protocol.Status) protocol.Command {
	for _, d := range grid.Directions {
		if st.Cells[neighbour[d]].Occupied() {
			return protocol.Command{Method: protocol.MethodPut, Direction: d}
		}
	}
	for _, d := range grid.Directions {
		if st.Cells[neighbour[d]] == grid.CellItem {
			return protocol.Command{Method: protocol.MethodWalk, Direction: d}
		}
	}

	var open []grid.Direction
	for _, d := range grid.Directions {
		if st.Cells[neighbour[d]] != grid.CellBlock {
			open = append(open, d)
		}
	}
	if len(open) == 0 {
		return protocol.Command{Method: protocol.MethodSearch, Direction: grid.Up}
	}
	return protocol.Command{Method: protocol.MethodWalk, Direction: open[g.rnd.Intn(len(open))]}
}
