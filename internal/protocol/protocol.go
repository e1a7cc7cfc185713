package protocol

import (
	"errors"
	"fmt"

	"github.com/KDT2006/chaser/internal/grid"
)

// Line framing. Every message on the wire ends with Terminator.
const (
	Terminator = "\r\n"

	// Server -> Client
	CallMarker = "@"

	// Client -> Server
	CallAck   = "gr"
	ResultAck = "#"

	StatusLength  = 10
	CommandLength = 2
)

// Status flag characters. Note the inversion: '0' means the game is over.
const (
	flagGameOver byte = '0'
	flagContinue byte = '1'
)

var (
	ErrMalformedCommand = errors.New("malformed command")
	ErrMalformedStatus  = errors.New("malformed status")
)

// Method is the action a client asks for.
type Method byte

const (
	MethodUnknown Method = iota
	MethodWalk
	MethodLook
	MethodSearch
	MethodPut
)

var methods = [...]Method{MethodWalk, MethodLook, MethodSearch, MethodPut}

func (m Method) Char() byte {
	switch m {
	case MethodWalk:
		return 'w'
	case MethodLook:
		return 'l'
	case MethodSearch:
		return 's'
	case MethodPut:
		return 'p'
	default:
		return 0
	}
}

func (m Method) String() string {
	switch m {
	case MethodWalk:
		return "walk"
	case MethodLook:
		return "look"
	case MethodSearch:
		return "search"
	case MethodPut:
		return "put"
	default:
		return "unknown"
	}
}

// Command is a decoded client request. The zero value is the "unknown"
// command, returned whenever no command could be obtained.
type Command struct {
	Method    Method
	Direction grid.Direction
}

func (c Command) IsUnknown() bool {
	return c.Method == MethodUnknown
}

// Encode renders the two command characters.
func (c Command) Encode() string {
	if c.IsUnknown() {
		return ""
	}
	return string([]byte{c.Method.Char(), c.Direction.Char()})
}

func (c Command) String() string {
	if c.IsUnknown() {
		return "unknown"
	}
	return c.Method.String() + " " + c.Direction.String()
}

// ParseCommand decodes exactly two characters: method then direction.
func ParseCommand(s string) (Command, error) {
	if len(s) != CommandLength {
		return Command{}, fmt.Errorf("%w: %q has length %d", ErrMalformedCommand, s, len(s))
	}

	var cmd Command
	for _, m := range methods {
		if m.Char() == s[0] {
			cmd.Method = m
			break
		}
	}
	if cmd.IsUnknown() {
		return Command{}, fmt.Errorf("%w: unknown method %q", ErrMalformedCommand, s[0])
	}

	d, ok := grid.ParseDirection(s[1])
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown direction %q", ErrMalformedCommand, s[1])
	}
	cmd.Direction = d
	return cmd, nil
}

// Status is what the server reports to one side: whether the game is over
// and nine cells in neighbourhood (or search) order.
type Status struct {
	GameOver bool
	Cells    [9]grid.Cell
}

// Encode renders the ten status characters.
func (s Status) Encode() string {
	buf := make([]byte, 0, StatusLength)
	if s.GameOver {
		buf = append(buf, flagGameOver)
	} else {
		buf = append(buf, flagContinue)
	}
	for _, c := range s.Cells {
		buf = append(buf, c.Char())
	}
	return string(buf)
}

// DecodeStatus is the inverse of Encode. The wire does not say which actor
// stands on an occupied cell, so those decode as grid.CellCoolAndHot.
func DecodeStatus(s string) (Status, error) {
	if len(s) != StatusLength {
		return Status{}, fmt.Errorf("%w: %q has length %d", ErrMalformedStatus, s, len(s))
	}

	var st Status
	switch s[0] {
	case flagGameOver:
		st.GameOver = true
	case flagContinue:
	default:
		return Status{}, fmt.Errorf("%w: bad flag %q", ErrMalformedStatus, s[0])
	}

	for i := range st.Cells {
		ch := s[i+1]
		if ch == grid.CharActor {
			st.Cells[i] = grid.CellCoolAndHot
			continue
		}
		c := grid.ParseTerrain(ch)
		if c == grid.CellUnknown {
			return Status{}, fmt.Errorf("%w: bad cell %q at %d", ErrMalformedStatus, ch, i)
		}
		st.Cells[i] = c
	}
	return st, nil
}
