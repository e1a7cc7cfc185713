package session

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KDT2006/chaser/internal/grid"
	"github.com/KDT2006/chaser/internal/line"
	"github.com/KDT2006/chaser/internal/protocol"
)

type fakeLine struct {
	name      string
	acceptErr error
	cmd       protocol.Command
	callErr   error
	notifyErr error
	closed    int
}

func (f *fakeLine) Accept() (string, error) { return f.name, f.acceptErr }
func (f *fakeLine) RequestCall(protocol.Status) (protocol.Command, error) {
	return f.cmd, f.callErr
}
func (f *fakeLine) NotifyResult(protocol.Status) error { return f.notifyErr }
func (f *fakeLine) Close() error {
	f.closed++
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []ConnectionEvent
}

func (r *recorder) add(e ConnectionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) bySide() map[grid.Side]ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[grid.Side]ConnectionState)
	for _, e := range r.events {
		out[e.Side] = e.State
	}
	return out
}

func TestStartAccept(t *testing.T) {
	cool := &fakeLine{name: "ice"}
	hot := &fakeLine{acceptErr: errors.New("address in use")}
	m := New(cool, hot, nil)

	var rec recorder
	m.Connections().Subscribe(rec.add)
	m.StartAccept()
	m.Wait()

	assert.Equal(t, map[grid.Side]ConnectionState{
		grid.Cool: Connected,
		grid.Hot:  AbortedWithError,
	}, rec.bySide())
	assert.Len(t, rec.events, 2)
	assert.Equal(t, "ice", m.TeamName(grid.Cool))
	assert.Equal(t, "", m.TeamName(grid.Hot))
}

func TestRequestCallFailureDisconnects(t *testing.T) {
	cool := &fakeLine{callErr: line.ErrProtocol}
	hot := &fakeLine{cmd: protocol.Command{Method: protocol.MethodPut, Direction: grid.Up}}
	m := New(cool, hot, nil)

	var rec recorder
	m.Connections().Subscribe(rec.add)

	cmd := m.RequestCall(grid.Cool, protocol.Status{})
	assert.True(t, cmd.IsUnknown())
	assert.Equal(t, 1, cool.closed)
	require.Len(t, rec.events, 1)
	assert.Equal(t, grid.Cool, rec.events[0].Side)
	assert.Equal(t, Disconnected, rec.events[0].State)
	assert.ErrorIs(t, rec.events[0].Err, line.ErrProtocol)

	assert.Equal(t, hot.cmd, m.RequestCall(grid.Hot, protocol.Status{}))
	assert.Equal(t, 0, hot.closed)
}

func TestNotifyResultFailureLeavesLineOpen(t *testing.T) {
	cool := &fakeLine{}
	hot := &fakeLine{notifyErr: line.ErrProtocol}
	m := New(cool, hot, nil)

	var rec recorder
	m.Connections().Subscribe(rec.add)

	assert.True(t, m.NotifyResult(grid.Cool, protocol.Status{}))
	assert.False(t, m.NotifyResult(grid.Hot, protocol.Status{}))
	assert.Equal(t, 0, hot.closed)
	assert.Empty(t, rec.events)

	m.Close()
	assert.Equal(t, 1, cool.closed)
	assert.Equal(t, 1, hot.closed)
}

func TestAcceptOverTCP(t *testing.T) {
	var lns [2]net.Listener
	var lines [2]*line.Transport
	for _, side := range grid.Sides {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		lns[side] = ln
		lines[side] = line.NewTransport(side, "", line.WithListener(ln))
	}
	m := New(lines[grid.Cool], lines[grid.Hot], nil)
	defer m.Close()

	var rec recorder
	m.Connections().Subscribe(rec.add)
	m.StartAccept()

	// hot connects first; completion order is free
	for _, side := range []grid.Side{grid.Hot, grid.Cool} {
		conn, err := net.Dial("tcp", lns[side].Addr().String())
		require.NoError(t, err)
		defer conn.Close()
		_, err = conn.Write([]byte(side.String() + " team\r\n"))
		require.NoError(t, err)
	}
	m.Wait()

	assert.Equal(t, map[grid.Side]ConnectionState{grid.Cool: Connected, grid.Hot: Connected}, rec.bySide())
	assert.Equal(t, "Cool team", m.TeamName(grid.Cool))
	assert.Equal(t, "Hot team", m.TeamName(grid.Hot))
}

func TestRequestCallOverTCPMalformedCommand(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cool := line.NewTransport(grid.Cool, "", line.WithListener(ln))
	m := New(cool, &fakeLine{}, nil)

	var rec recorder
	m.Connections().Subscribe(rec.add)
	m.StartAccept()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("bad\r\n"))
	require.NoError(t, err)
	m.Wait()

	go func() {
		r := bufio.NewReader(conn)
		r.ReadString('\n') // @
		conn.Write([]byte("gr\r\n"))
		r.ReadString('\n') // status
		conn.Write([]byte("xz\r\n"))
	}()

	cmd := m.RequestCall(grid.Cool, protocol.Status{Cells: [9]grid.Cell{
		grid.CellEmpty, grid.CellEmpty, grid.CellEmpty,
		grid.CellEmpty, grid.CellCool, grid.CellEmpty,
		grid.CellEmpty, grid.CellEmpty, grid.CellEmpty,
	}})
	assert.True(t, cmd.IsUnknown())
	assert.Equal(t, Disconnected, rec.bySide()[grid.Cool])

	// the line was disposed
	_, err = cool.RequestCall(protocol.Status{})
	assert.ErrorIs(t, err, line.ErrClosed)
}
