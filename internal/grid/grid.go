package grid

import (
	"errors"
	"fmt"
)

// Grid construction and precondition errors.
var (
	ErrEmptyGrid    = errors.New("grid needs at least one row")
	ErrRaggedRows   = errors.New("grid rows differ in length")
	ErrUnknownCell  = errors.New("grid contains an unknown cell")
	ErrActorCount   = errors.New("grid must hold exactly one Cool and one Hot")
	ErrInvalidState = errors.New("actor is crushed and cannot act")
)

// Result is the verdict of a position.
type Result byte

const (
	Continue Result = iota
	CoolWon
	HotWon
	Draw
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case CoolWon:
		return "Cool won"
	case HotWon:
		return "Hot won"
	case Draw:
		return "draw"
	default:
		return "unknown"
	}
}

// Grid is the authoritative floor. It is a dense rectangle: reads outside it
// see CellBlock, writes outside it are rejected. A Grid has a single writer
// and does no locking of its own.
type Grid struct {
	width  int
	height int
	cells  []Cell
	pos    [2]Point
}

// New builds a grid from equal-length rows and places both actors.
func New(rows [][]Cell, cool, hot Point) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyGrid
	}

	g := &Grid{
		width:  len(rows[0]),
		height: len(rows),
	}
	g.cells = make([]Cell, 0, g.width*g.height)
	for y, row := range rows {
		if len(row) != g.width {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", y, len(row), g.width, ErrRaggedRows)
		}
		for x, c := range row {
			if c == CellUnknown {
				return nil, fmt.Errorf("cell %d,%d: %w", x, y, ErrUnknownCell)
			}
		}
		g.cells = append(g.cells, row...)
	}

	g.Update(cool, CellCool)
	g.pos[Cool] = cool
	g.Update(hot, CellHot)
	g.pos[Hot] = hot

	if n := g.count(CellCool); n != 1 {
		return nil, fmt.Errorf("found %d Cool cells: %w", n, ErrActorCount)
	}
	if n := g.count(CellHot); n != 1 {
		return nil, fmt.Errorf("found %d Hot cells: %w", n, ErrActorCount)
	}

	return g, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// Contains reports whether p lies inside the rectangle.
func (g *Grid) Contains(p Point) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

// At returns the cell at p; anything outside the rectangle is a wall.
func (g *Grid) At(p Point) Cell {
	if !g.Contains(p) {
		return CellBlock
	}
	return g.cells[p.Y*g.width+p.X]
}

// Update overwrites the cell at p. It returns false when p is off the grid.
func (g *Grid) Update(p Point, c Cell) bool {
	if !g.Contains(p) {
		return false
	}
	g.cells[p.Y*g.width+p.X] = c
	return true
}

// Position returns the stored coordinate of an actor.
func (g *Grid) Position(s Side) Point {
	return g.pos[s]
}

// Rows returns a copy of the floor, row by row.
func (g *Grid) Rows() [][]Cell {
	rows := make([][]Cell, g.height)
	for y := range rows {
		rows[y] = make([]Cell, g.width)
		copy(rows[y], g.cells[y*g.width:(y+1)*g.width])
	}
	return rows
}

func (g *Grid) count(c Cell) int {
	n := 0
	for _, v := range g.cells {
		if v == c {
			n++
		}
	}
	return n
}

// Neighbourhood returns the 3x3 block around the actor, itself included.
func (g *Grid) Neighbourhood(s Side) [9]Cell {
	return g.around(g.pos[s])
}

func (g *Grid) around(p Point) [9]Cell {
	var out [9]Cell
	for i, q := range p.Around(true) {
		out[i] = g.At(q)
	}
	return out
}

func (g *Grid) checkAlive(s Side) error {
	if g.At(g.pos[s]) == CellBlock {
		return fmt.Errorf("%v at %v: %w", s, g.pos[s], ErrInvalidState)
	}
	return nil
}

// Walk moves the actor one step. Stepping onto an item leaves a block
// behind. Stepping onto a block still relocates the actor onto it, which
// ends the game for that actor.
func (g *Grid) Walk(s Side, d Direction) (gotItem bool, err error) {
	if err := g.checkAlive(s); err != nil {
		return false, err
	}

	me, opp := s.Cell(), s.Opponent().Cell()
	from := g.pos[s]
	dest := from.Shift(d)
	fromOld := g.At(from)
	destOld := g.At(dest)

	// what remains at the origin once this actor leaves it
	left := CellEmpty
	if fromOld == CellCoolAndHot {
		left = opp
	}

	var fromNew, destNew Cell
	switch destOld {
	case CellItem:
		fromNew, destNew = CellBlock, me
		gotItem = true
	case opp:
		fromNew, destNew = CellEmpty, CellCoolAndHot
	case CellBlock:
		fromNew, destNew = left, CellBlock
	default:
		fromNew, destNew = left, me
	}

	g.Update(from, fromNew)
	g.Update(dest, destNew)
	g.pos[s] = dest
	return gotItem, nil
}

// Look returns the 3x3 block centred two steps away from the actor.
func (g *Grid) Look(s Side, d Direction) ([9]Cell, error) {
	if err := g.checkAlive(s); err != nil {
		return [9]Cell{}, err
	}
	return g.around(g.pos[s].Shift(d).Shift(d)), nil
}

// Search returns the nine cells in a straight line starting next to the actor.
func (g *Grid) Search(s Side, d Direction) ([9]Cell, error) {
	var out [9]Cell
	if err := g.checkAlive(s); err != nil {
		return out, err
	}
	p := g.pos[s]
	for i := range out {
		p = p.Shift(d)
		out[i] = g.At(p)
	}
	return out, nil
}

// Put drops a block on the adjacent cell, whatever is there.
func (g *Grid) Put(s Side, d Direction) error {
	if err := g.checkAlive(s); err != nil {
		return err
	}
	g.Update(g.pos[s].Shift(d), CellBlock)
	return nil
}

// Lost reports whether the actor is off the floor, crushed under a block,
// or walled in on all four sides.
func (g *Grid) Lost(s Side) bool {
	p := g.pos[s]
	if !g.Contains(p) || g.At(p) == CellBlock {
		return true
	}
	for _, q := range p.Orthogonal() {
		if g.At(q) != CellBlock {
			return false
		}
	}
	return true
}

// IsTerminal reports whether either actor has lost.
func (g *Grid) IsTerminal() bool {
	return g.Lost(Cool) || g.Lost(Hot)
}

// Result names the winner of the current position.
func (g *Grid) Result() Result {
	coolLost, hotLost := g.Lost(Cool), g.Lost(Hot)
	switch {
	case coolLost && hotLost:
		return Draw
	case coolLost:
		return HotWon
	case hotLost:
		return CoolWon
	default:
		return Continue
	}
}
