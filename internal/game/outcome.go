package game

import "github.com/KDT2006/chaser/internal/grid"

// Reason tells why a match ended.
type Reason byte

const (
	ReasonNone Reason = iota
	ReasonTerminal
	ReasonTurnLimit
	ReasonProtocolFailure
	ReasonConnectFailure
	ReasonInternalError
)

func (r Reason) String() string {
	switch r {
	case ReasonTerminal:
		return "terminal"
	case ReasonTurnLimit:
		return "turn limit"
	case ReasonProtocolFailure:
		return "protocol failure"
	case ReasonConnectFailure:
		return "connect failure"
	case ReasonInternalError:
		return "internal error"
	default:
		return "none"
	}
}

// Failed reports whether the match ended without a verdict.
func (r Reason) Failed() bool {
	return r == ReasonProtocolFailure || r == ReasonConnectFailure || r == ReasonInternalError
}

// Outcome is the final report of a match. Side names the offending side
// when Reason is a failure.
type Outcome struct {
	Reason Reason
	Result grid.Result
	Side   grid.Side
	Err    error
	Turn   int
	Items  [2]int
	Teams  [2]string
}
