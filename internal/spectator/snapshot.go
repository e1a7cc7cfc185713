package spectator

import (
	"strings"

	"github.com/KDT2006/chaser/internal/game"
	"github.com/KDT2006/chaser/internal/grid"
)

// Team is one side as seen by spectators.
type Team struct {
	Name      string     `json:"name"`
	Connected bool       `json:"connected"`
	Items     int        `json:"items"`
	Position  grid.Point `json:"position"`
}

// Result is the end of a match as seen by spectators.
type Result struct {
	Reason string `json:"reason"`
	Result string `json:"result"`
	Side   string `json:"side,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Snapshot is the full public state of a match.
type Snapshot struct {
	ID        string   `json:"id"`
	Map       string   `json:"map"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	State     string   `json:"state"`
	Turn      int      `json:"turn"`
	TurnLimit int      `json:"turn_limit"`
	Cool      Team     `json:"cool"`
	Hot       Team     `json:"hot"`
	Rows      []string `json:"rows"`
	Outcome   *Result  `json:"outcome,omitempty"`
}

// Message is what the websocket stream carries: the event that happened
// and the snapshot right after it.
type Message struct {
	Type  string   `json:"type"`
	Match Snapshot `json:"match"`
}

const (
	TypeSnapshot   = "snapshot"
	TypeConnection = "connection"
	TypeTeam       = "team"
	TypeTurn       = "turn"
	TypeItems      = "items"
	TypeGrid       = "grid"
	TypeFinished   = "finished"
)

func (s *Snapshot) team(side grid.Side) *Team {
	if side == grid.Cool {
		return &s.Cool
	}
	return &s.Hot
}

// clone copies the snapshot so it can leave the hub's lock.
func (s Snapshot) clone() Snapshot {
	s.Rows = append([]string(nil), s.Rows...)
	if s.Outcome != nil {
		o := *s.Outcome
		s.Outcome = &o
	}
	return s
}

func renderRows(rows [][]grid.Cell) []string {
	out := make([]string, len(rows))
	var b strings.Builder
	for y, row := range rows {
		b.Reset()
		for _, c := range row {
			b.WriteRune(c.Glyph())
		}
		out[y] = b.String()
	}
	return out
}

func resultOf(o game.Outcome) *Result {
	r := &Result{Reason: o.Reason.String(), Result: o.Result.String()}
	if o.Reason.Failed() {
		r.Side = o.Side.String()
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}
