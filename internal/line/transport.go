package line

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"

	"github.com/KDT2006/chaser/internal/grid"
	"github.com/KDT2006/chaser/internal/protocol"
)

var (
	// ErrProtocol is returned when the peer answers with the wrong text.
	ErrProtocol = errors.New("protocol violation")
	// ErrClosed is returned when the transport has no usable connection.
	ErrClosed = errors.New("transport closed")
)

const (
	// the team name line may be empty
	teamNameMinLength = 0
	readChunk         = 256
)

// Transport is the blocking line connection of one side. It accepts a
// single peer and then runs the call / acknowledge / response cycle.
// A Transport is not safe for concurrent use except for Close.
type Transport struct {
	side   grid.Side
	addr   string
	enc    encoding.Encoding
	dumper *Dumper
	log    *log.Entry

	mu   sync.Mutex
	ln   net.Listener
	conn net.Conn

	scratch []byte
}

type Option func(*Transport)

// WithListener makes the transport accept on an already bound listener.
func WithListener(ln net.Listener) Option {
	return func(t *Transport) { t.ln = ln }
}

// WithEncoding sets the text encoding of the wire. The default is Shift_JIS.
func WithEncoding(enc encoding.Encoding) Option {
	return func(t *Transport) {
		if enc != nil {
			t.enc = enc
		}
	}
}

func WithDumper(d *Dumper) Option {
	return func(t *Transport) { t.dumper = d }
}

func WithLogger(l *log.Entry) Option {
	return func(t *Transport) { t.log = l }
}

// NewTransport prepares the transport of side, listening on addr once
// Listen or Accept is called.
func NewTransport(side grid.Side, addr string, opts ...Option) *Transport {
	t := &Transport{
		side:    side,
		addr:    addr,
		enc:     japanese.ShiftJIS,
		log:     log.NewEntry(log.StandardLogger()),
		scratch: make([]byte, readChunk),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.WithField("side", side.String())
	return t
}

func (t *Transport) Side() grid.Side { return t.side }

// Listen binds the listening socket if it is not bound yet.
func (t *Transport) Listen() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.addr, err)
	}
	t.ln = ln
	return nil
}

// Addr is the bound address, or nil before Listen.
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// Accept waits for exactly one peer, stops listening, and reads the team
// name the peer sends first.
func (t *Transport) Accept() (string, error) {
	if err := t.Listen(); err != nil {
		return "", err
	}

	t.mu.Lock()
	ln := t.ln
	t.mu.Unlock()

	t.log.WithField("address", ln.Addr().String()).Info("waiting for connection")
	conn, err := ln.Accept()
	ln.Close()
	if err != nil {
		return "", fmt.Errorf("failed to accept connection: %w", err)
	}

	t.mu.Lock()
	t.ln = nil
	t.conn = conn
	t.mu.Unlock()

	t.log.WithField("remote", conn.RemoteAddr().String()).Info("accepted connection")

	name, err := t.receive(teamNameMinLength)
	if err != nil {
		return "", fmt.Errorf("failed to read team name: %w", err)
	}
	return name, nil
}

// RequestCall asks the peer for its next command. When the status reports
// the end of the game no command is read and the unknown command is
// returned.
func (t *Transport) RequestCall(st protocol.Status) (protocol.Command, error) {
	if err := t.send(protocol.CallMarker); err != nil {
		return protocol.Command{}, err
	}
	ack, err := t.receive(len(protocol.CallAck))
	if err != nil {
		return protocol.Command{}, err
	}
	if ack != protocol.CallAck {
		return protocol.Command{}, fmt.Errorf("%w: got %q, want %q", ErrProtocol, ack, protocol.CallAck)
	}

	if err := t.send(st.Encode()); err != nil {
		return protocol.Command{}, err
	}
	if st.GameOver {
		return protocol.Command{}, nil
	}

	text, err := t.receive(protocol.CommandLength)
	if err != nil {
		return protocol.Command{}, err
	}
	cmd, err := protocol.ParseCommand(text)
	if err != nil {
		return protocol.Command{}, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return cmd, nil
}

// NotifyResult reports the outcome of a command and waits for the peer's
// acknowledgement.
func (t *Transport) NotifyResult(st protocol.Status) error {
	if err := t.send(st.Encode()); err != nil {
		return err
	}
	ack, err := t.receive(len(protocol.ResultAck))
	if err != nil {
		return err
	}
	if ack != protocol.ResultAck {
		return fmt.Errorf("%w: got %q, want %q", ErrProtocol, ack, protocol.ResultAck)
	}
	return nil
}

// Close drops the connection and any listener. The transport is unusable
// afterwards.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	if t.ln != nil {
		errs = append(errs, t.ln.Close())
		t.ln = nil
	}
	if t.conn != nil {
		errs = append(errs, t.conn.Close())
		t.conn = nil
		t.log.Info("connection closed")
	}
	return errors.Join(errs...)
}

func (t *Transport) connection() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, ErrClosed
	}
	return t.conn, nil
}

func (t *Transport) send(msg string) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}

	b, err := t.enc.NewEncoder().Bytes([]byte(msg + protocol.Terminator))
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", msg, err)
	}
	if _, err := conn.Write(b); err != nil {
		return fmt.Errorf("failed to send %q: %w", msg, err)
	}
	t.dumper.Dump(Sent, b)
	t.log.WithField("message", msg).Debug("sent")
	return nil
}

// receive reads until at least min characters plus the terminator have
// arrived, then takes everything read so far as a single message. A
// message longer than min is kept whole as long as the peer wrote it in
// one piece.
func (t *Transport) receive(min int) (string, error) {
	conn, err := t.connection()
	if err != nil {
		return "", err
	}

	want := min + len(protocol.Terminator)
	var got []byte
	for len(got) < want {
		n, err := conn.Read(t.scratch)
		got = append(got, t.scratch[:n]...)
		if err != nil {
			t.dumper.Dump(Received, got)
			return "", fmt.Errorf("failed to receive: %w", err)
		}
	}
	t.dumper.Dump(Received, got)

	text, err := t.enc.NewDecoder().Bytes(got)
	if err != nil {
		return "", fmt.Errorf("failed to decode %q: %w", got, err)
	}
	msg := strings.TrimRight(string(text), "\r\n")
	t.log.WithField("message", msg).Debug("received")
	return msg, nil
}
