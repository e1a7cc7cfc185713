package game

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KDT2006/chaser/internal/grid"
	"github.com/KDT2006/chaser/internal/notify"
	"github.com/KDT2006/chaser/internal/protocol"
	"github.com/KDT2006/chaser/internal/session"
)

// fakeSession replays scripted commands and records every exchange as
// "<side> call|notify <status>".
type fakeSession struct {
	feed       notify.Feed[session.ConnectionEvent]
	names      [2]string
	acceptErr  [2]error
	commands   [2][]string
	notifyFail [2]bool
	hangUp     [2]bool // disconnect on the game-over call
	log        []string
	closed     bool
}

func (f *fakeSession) Connections() *notify.Feed[session.ConnectionEvent] { return &f.feed }

func (f *fakeSession) StartAccept() {
	for _, side := range grid.Sides {
		if f.acceptErr[side] != nil {
			f.feed.Publish(session.ConnectionEvent{Side: side, State: session.AbortedWithError, Err: f.acceptErr[side]})
			continue
		}
		f.feed.Publish(session.ConnectionEvent{Side: side, State: session.Connected})
	}
}

func (f *fakeSession) TeamName(side grid.Side) string { return f.names[side] }

func (f *fakeSession) RequestCall(side grid.Side, st protocol.Status) protocol.Command {
	f.log = append(f.log, side.String()+" call "+st.Encode())
	if st.GameOver {
		if f.hangUp[side] {
			f.disconnect(side)
		}
		return protocol.Command{}
	}
	if len(f.commands[side]) == 0 {
		f.disconnect(side)
		return protocol.Command{}
	}
	next := f.commands[side][0]
	f.commands[side] = f.commands[side][1:]
	cmd, err := protocol.ParseCommand(next)
	if err != nil {
		f.disconnect(side)
		return protocol.Command{}
	}
	return cmd
}

func (f *fakeSession) disconnect(side grid.Side) {
	f.feed.Publish(session.ConnectionEvent{Side: side, State: session.Disconnected, Err: errors.New("gone")})
}

func (f *fakeSession) NotifyResult(side grid.Side, st protocol.Status) bool {
	f.log = append(f.log, side.String()+" notify "+st.Encode())
	return !f.notifyFail[side]
}

func (f *fakeSession) Close() { f.closed = true }

func newFloor(t *testing.T, cool, hot grid.Point, lines ...string) *grid.Grid {
	t.Helper()
	rows := make([][]grid.Cell, len(lines))
	for y, l := range lines {
		for i := 0; i < len(l); i++ {
			rows[y] = append(rows[y], grid.ParseTerrain(l[i]))
		}
	}
	g, err := grid.New(rows, cool, hot)
	require.NoError(t, err)
	return g
}

func script(cool, hot string) [2][]string {
	var s [2][]string
	if cool != "" {
		s[grid.Cool] = strings.Fields(cool)
	}
	if hot != "" {
		s[grid.Hot] = strings.Fields(hot)
	}
	return s
}

func TestCollisionThenTurnLimit(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 2, Y: 0}, "000")
	s := &fakeSession{names: [2]string{"ice", "fire"}, commands: script("wr wr", "wl wl")}
	g := New(floor, s, 1)

	out := g.Run()

	assert.Equal(t, ReasonTurnLimit, out.Reason)
	assert.Equal(t, grid.Draw, out.Result)
	assert.Equal(t, 1, out.Turn)
	assert.Equal(t, [2]string{"ice", "fire"}, out.Teams)
	assert.Equal(t, []string{
		"Cool call 1222210222",
		"Cool notify 1222011222",
		"Hot call 1222112222",
		"Hot notify 1222010222",
	}, s.log)
	assert.Equal(t, grid.CellCoolAndHot, floor.At(grid.Point{X: 1, Y: 0}))
	assert.Equal(t, GameStateFinished, g.GetState())
	assert.True(t, s.closed)
}

func TestSealedAtStartSendsGameOverWithoutCommand(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 2, Y: 2}, "020", "200", "000")
	s := &fakeSession{commands: script("wr", "wl")}

	out := New(floor, s, -1).Run()

	assert.Equal(t, ReasonTerminal, out.Reason)
	assert.Equal(t, grid.HotWon, out.Result)
	assert.Equal(t, 1, out.Turn)
	require.Len(t, s.log, 2)
	assert.Equal(t, "Cool call 0222212220", s.log[0])
	assert.True(t, strings.HasPrefix(s.log[1], "Hot call 0"))
	assert.Equal(t, []string{"wr"}, s.commands[grid.Cool], "no command may be solicited")
}

func TestMalformedCommandEndsGameSilently(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 2, Y: 0}, "000")
	s := &fakeSession{commands: script("xz", "wl")}
	g := New(floor, s, -1)

	var conns []session.ConnectionEvent
	g.Events().Connection.Subscribe(func(e session.ConnectionEvent) { conns = append(conns, e) })

	out := g.Run()

	assert.Equal(t, ReasonProtocolFailure, out.Reason)
	assert.Equal(t, grid.Cool, out.Side)
	assert.ErrorIs(t, out.Err, errNoCommand)
	assert.ErrorContains(t, out.Err, "gone")
	assert.Equal(t, []string{"Cool call 1222210222"}, s.log)
	require.Len(t, conns, 3)
	assert.Equal(t, session.Disconnected, conns[2].State)
	assert.False(t, g.Player(grid.Cool).Connected)
}

func TestNotifyFailureEndsGame(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 2, Y: 0}, "000")
	s := &fakeSession{commands: script("sr", "sl")}
	s.notifyFail[grid.Hot] = true

	out := New(floor, s, -1).Run()

	assert.Equal(t, ReasonProtocolFailure, out.Reason)
	assert.Equal(t, grid.Hot, out.Side)
	assert.ErrorIs(t, out.Err, errNotAcknowledged)
	assert.Len(t, s.log, 4)
}

func TestCrushingOpponentEndsGame(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 1, Y: 0}, "000", "000")
	s := &fakeSession{commands: script("pr", "wl")}

	out := New(floor, s, 10).Run()

	assert.Equal(t, ReasonTerminal, out.Reason)
	assert.Equal(t, grid.CoolWon, out.Result)
	assert.Equal(t, []string{
		"Cool call 1222211200",
		"Cool notify 0222212200",
		"Hot call 0222120000",
	}, s.log)
}

func TestVerdictStandsWhenLoserHangsUp(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 1, Y: 0}, "000", "000")
	s := &fakeSession{commands: script("pr", "wl")}
	s.hangUp[grid.Hot] = true
	g := New(floor, s, 10)

	out := g.Run()

	assert.Equal(t, ReasonTerminal, out.Reason)
	assert.Equal(t, grid.CoolWon, out.Result)
	assert.NoError(t, out.Err)
	assert.Len(t, s.log, 3)
	assert.False(t, g.Player(grid.Hot).Connected)
}

func TestGameOverStopsAtFirstFailedDelivery(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 2, Y: 2}, "020", "200", "000")
	s := &fakeSession{commands: script("wr", "wl")}
	s.hangUp[grid.Cool] = true

	out := New(floor, s, -1).Run()

	assert.Equal(t, ReasonTerminal, out.Reason)
	assert.Equal(t, grid.HotWon, out.Result)
	assert.Equal(t, []string{"Cool call 0222212220"}, s.log)
}

func TestLastActionOfRoundInformsFirstSide(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 2, Y: 0}, "000", "200")
	s := &fakeSession{commands: script("lr", "pl")}

	out := New(floor, s, 10).Run()

	assert.Equal(t, ReasonTerminal, out.Reason)
	assert.Equal(t, grid.HotWon, out.Result)
	require.Len(t, s.log, 5)
	assert.True(t, strings.HasPrefix(s.log[3], "Hot notify 0"))
	assert.True(t, strings.HasPrefix(s.log[4], "Cool call 0"))
}

func TestItemsAndEvents(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 4, Y: 1}, "03300", "00000")
	s := &fakeSession{names: [2]string{"ice", "fire"}, commands: script("wr wr sd", "ld wu pl")}
	g := New(floor, s, 3)

	var turns []int
	var items []ItemEvent
	var teams []TeamEvent
	var grids []GridEvent
	var finished []Outcome
	ev := g.Events()
	ev.Turn.Subscribe(func(n int) { turns = append(turns, n) })
	ev.Items.Subscribe(func(e ItemEvent) { items = append(items, e) })
	ev.TeamName.Subscribe(func(e TeamEvent) { teams = append(teams, e) })
	ev.Grid.Subscribe(func(e GridEvent) { grids = append(grids, e) })
	ev.Finished.Subscribe(func(o Outcome) { finished = append(finished, o) })

	out := g.Run()

	assert.Equal(t, ReasonTurnLimit, out.Reason)
	assert.Equal(t, [2]int{2, 0}, out.Items)
	assert.Equal(t, 2, g.Player(grid.Cool).Items)
	assert.Equal(t, []int{1, 2, 3}, turns)
	assert.Equal(t, []ItemEvent{{Side: grid.Cool, Count: 1}, {Side: grid.Cool, Count: 2}}, items)
	assert.ElementsMatch(t, []TeamEvent{{Side: grid.Cool, Name: "ice"}, {Side: grid.Hot, Name: "fire"}}, teams)
	require.Len(t, finished, 1)
	assert.Equal(t, out, finished[0])

	// walk, walk, walk, put; look and search do not touch the floor
	require.Len(t, grids, 4)
	assert.Equal(t, protocol.MethodPut, grids[3].Command.Method)
	assert.Equal(t, 3, grids[3].Turn)
	assert.Equal(t, grid.Point{X: 2, Y: 0}, grids[3].Positions[grid.Cool])
	assert.Equal(t, grid.CellBlock, grids[0].Rows[0][0])
}

func TestConnectFailure(t *testing.T) {
	floor := newFloor(t, grid.Point{X: 0, Y: 0}, grid.Point{X: 2, Y: 0}, "000")
	s := &fakeSession{}
	s.acceptErr[grid.Hot] = errors.New("bind: address already in use")
	g := New(floor, s, -1)

	out := g.Run()

	assert.Equal(t, ReasonConnectFailure, out.Reason)
	assert.Equal(t, grid.Hot, out.Side)
	assert.Error(t, out.Err)
	assert.Equal(t, 0, out.Turn)
	assert.Empty(t, s.log)
	assert.True(t, s.closed)
}
