package grid

import "fmt"

// Cell is the occupancy of one floor position.
type Cell byte

const (
	// CellUnknown is only produced by failed parses and never stored in a Grid.
	CellUnknown Cell = iota
	CellEmpty
	CellBlock
	CellItem
	CellCool
	CellHot
	CellCoolAndHot
)

// Wire characters shared by the line protocol and map files.
const (
	CharEmpty byte = '0'
	CharActor byte = '1'
	CharBlock byte = '2'
	CharItem  byte = '3'
)

// Char encodes the cell as its protocol character. Every occupied state
// collapses to CharActor.
func (c Cell) Char() byte {
	switch c {
	case CellEmpty:
		return CharEmpty
	case CellBlock:
		return CharBlock
	case CellItem:
		return CharItem
	case CellCool, CellHot, CellCoolAndHot:
		return CharActor
	default:
		panic(fmt.Sprintf("grid: no wire character for %v", c))
	}
}

// ParseTerrain decodes a map file cell character. Actors are never part of
// map terrain, so CharActor is rejected like any other unknown symbol.
func ParseTerrain(ch byte) Cell {
	switch ch {
	case CharEmpty:
		return CellEmpty
	case CharBlock:
		return CellBlock
	case CharItem:
		return CellItem
	default:
		return CellUnknown
	}
}

// Holds reports whether the given side stands on a cell in this state.
func (c Cell) Holds(s Side) bool {
	return c == s.Cell() || c == CellCoolAndHot
}

// Occupied reports whether any actor stands on the cell.
func (c Cell) Occupied() bool {
	return c == CellCool || c == CellHot || c == CellCoolAndHot
}

func (c Cell) String() string {
	switch c {
	case CellEmpty:
		return "Empty"
	case CellBlock:
		return "Block"
	case CellItem:
		return "Item"
	case CellCool:
		return "Cool"
	case CellHot:
		return "Hot"
	case CellCoolAndHot:
		return "CoolAndHot"
	default:
		return "Unknown"
	}
}

// Glyph is a one-rune rendering used by logs and the spectator feed.
func (c Cell) Glyph() rune {
	switch c {
	case CellEmpty:
		return '.'
	case CellBlock:
		return '#'
	case CellItem:
		return '*'
	case CellCool:
		return 'C'
	case CellHot:
		return 'H'
	case CellCoolAndHot:
		return 'X'
	default:
		return '?'
	}
}
