package session

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"

	"github.com/KDT2006/chaser/internal/grid"
	"github.com/KDT2006/chaser/internal/line"
	"github.com/KDT2006/chaser/internal/notify"
	"github.com/KDT2006/chaser/internal/protocol"
)

type ConnectionState byte

const (
	StateUnknown ConnectionState = iota
	Connected
	Disconnected
	AbortedWithError
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case AbortedWithError:
		return "aborted with error"
	default:
		return "unknown"
	}
}

// ConnectionEvent reports a change of one side's connection.
type ConnectionEvent struct {
	Side  grid.Side
	State ConnectionState
	Err   error
}

// Line is the per-side transport the manager drives.
type Line interface {
	Accept() (string, error)
	RequestCall(protocol.Status) (protocol.Command, error)
	NotifyResult(protocol.Status) error
	Close() error
}

// Manager owns both sides' lines and turns their failures into
// connection events.
type Manager struct {
	lines [2]Line
	log   *log.Entry

	mu    sync.Mutex
	names [2]string

	connections notify.Feed[ConnectionEvent]
	wg          sync.WaitGroup
}

// New wraps the two lines, indexed by side.
func New(cool, hot Line, logger *log.Entry) *Manager {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	m := &Manager{log: logger}
	m.lines[grid.Cool] = cool
	m.lines[grid.Hot] = hot
	return m
}

// Config describes the TCP endpoints of a match.
type Config struct {
	CoolAddr string
	HotAddr  string
	Encoding encoding.Encoding
	DumpDir  string // empty disables traffic dumps
}

// NewTCP builds a manager over line transports. Nothing is bound until
// StartAccept.
func NewTCP(cfg Config, logger *log.Entry) *Manager {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	transport := func(side grid.Side, addr string) *line.Transport {
		opts := []line.Option{line.WithEncoding(cfg.Encoding), line.WithLogger(logger)}
		if cfg.DumpDir != "" {
			opts = append(opts, line.WithDumper(line.NewFileDumper(side, cfg.DumpDir)))
		}
		return line.NewTransport(side, addr, opts...)
	}
	return New(transport(grid.Cool, cfg.CoolAddr), transport(grid.Hot, cfg.HotAddr), logger)
}

// Connections is the feed of connection state changes. Events may arrive
// on accept goroutines.
func (m *Manager) Connections() *notify.Feed[ConnectionEvent] {
	return &m.connections
}

// StartAccept accepts both sides concurrently and returns immediately.
func (m *Manager) StartAccept() {
	for _, side := range grid.Sides {
		m.wg.Add(1)
		go m.accept(side)
	}
}

// Wait blocks until both accept tasks have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) accept(side grid.Side) {
	defer m.wg.Done()

	name, err := m.lines[side].Accept()
	if err != nil {
		m.log.WithField("side", side.String()).WithError(err).Error("accept failed")
		m.connections.Publish(ConnectionEvent{Side: side, State: AbortedWithError, Err: err})
		return
	}

	m.mu.Lock()
	m.names[side] = name
	m.mu.Unlock()

	m.log.WithField("side", side.String()).WithField("team", name).Info("side connected")
	m.connections.Publish(ConnectionEvent{Side: side, State: Connected})
}

// TeamName returns the name a side sent on connect, or "" before that.
func (m *Manager) TeamName(side grid.Side) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.names[side]
}

// RequestCall asks side for a command. Any failure disposes that side's
// line, raises Disconnected, and yields the unknown command.
func (m *Manager) RequestCall(side grid.Side, st protocol.Status) protocol.Command {
	l := m.lines[side]
	cmd, err := l.RequestCall(st)
	if err != nil {
		m.log.WithField("side", side.String()).WithError(err).Error("method request failed")
		l.Close()
		m.connections.Publish(ConnectionEvent{Side: side, State: Disconnected, Err: fmt.Errorf("request call: %w", err)})
		return protocol.Command{}
	}
	return cmd
}

// NotifyResult reports a result to side. On failure it returns false and
// leaves the line for the caller to dispose.
func (m *Manager) NotifyResult(side grid.Side, st protocol.Status) bool {
	if err := m.lines[side].NotifyResult(st); err != nil {
		m.log.WithField("side", side.String()).WithError(err).Error("result notification failed")
		return false
	}
	return true
}

// Close disposes both lines.
func (m *Manager) Close() {
	for _, side := range grid.Sides {
		if err := m.lines[side].Close(); err != nil {
			m.log.WithField("side", side.String()).WithError(err).Warn("failed to close line")
		}
	}
}
