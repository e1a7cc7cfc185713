package grid

import "fmt"

// Side identifies one of the two competing actors.
type Side byte

const (
	Cool Side = iota
	Hot
)

// Sides lists both actors in turn order.
var Sides = [2]Side{Cool, Hot}

func (s Side) Opponent() Side {
	if s == Cool {
		return Hot
	}
	return Cool
}

// Cell returns the cell state of a floor position held only by this side.
func (s Side) Cell() Cell {
	if s == Cool {
		return CellCool
	}
	return CellHot
}

func (s Side) String() string {
	switch s {
	case Cool:
		return "Cool"
	case Hot:
		return "Hot"
	default:
		return fmt.Sprintf("Side(%d)", byte(s))
	}
}

// Direction is one of the four unit moves.
type Direction byte

const (
	NoDirection Direction = iota
	Up
	Down
	Left
	Right
)

// Directions lists the valid directions.
var Directions = [4]Direction{Up, Down, Left, Right}

// Char returns the protocol character of the direction, or 0 for NoDirection.
func (d Direction) Char() byte {
	switch d {
	case Up:
		return 'u'
	case Down:
		return 'd'
	case Left:
		return 'l'
	case Right:
		return 'r'
	default:
		return 0
	}
}

// ParseDirection maps a protocol character to a direction.
func ParseDirection(c byte) (Direction, bool) {
	for _, d := range Directions {
		if d.Char() == c {
			return d, true
		}
	}
	return NoDirection, false
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}
