// Package client is a bot that plays one side of a match over the line
// protocol.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/KDT2006/chaser/internal/protocol"
)

// ErrUnexpected is returned when the server sends something out of turn.
var ErrUnexpected = errors.New("unexpected message")

// Summary describes how a game went from the bot's point of view.
type Summary struct {
	Turns    int  // commands sent
	GameOver bool // the server announced the end; false if it just hung up
	Last     protocol.Status
}

type Client struct {
	ServerAddr string
	Team       string

	enc         encoding.Encoding
	strategy    Strategy
	log         *log.Entry
	dialTimeout time.Duration

	conn net.Conn
	r    *bufio.Reader
}

type Option func(*Client)

func WithEncoding(enc encoding.Encoding) Option {
	return func(c *Client) {
		if enc != nil {
			c.enc = enc
		}
	}
}

func WithStrategy(s Strategy) Option {
	return func(c *Client) { c.strategy = s }
}

func WithLogger(l *log.Entry) Option {
	return func(c *Client) { c.log = l }
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

func New(serverAddr, team string, opts ...Option) *Client {
	c := &Client{
		ServerAddr:  serverAddr,
		Team:        team,
		enc:         japanese.ShiftJIS,
		log:         log.NewEntry(log.StandardLogger()),
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.strategy == nil {
		c.strategy = NewGreedy(time.Now().UnixNano())
	}
	c.log = c.log.WithField("team", team)
	return c
}

// Connect dials the server and sends the team name.
func (c *Client) Connect() error {
	conn, err := net.DialTimeout("tcp", c.ServerAddr, c.dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	c.conn = conn
	c.r = bufio.NewReader(transform.NewReader(conn, c.enc.NewDecoder()))
	c.log.WithField("address", c.ServerAddr).Info("connected to server")

	if err := c.send(c.Team); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// Play answers the server until the game ends or the server hangs up.
func (c *Client) Play() (Summary, error) {
	var sum Summary
	for {
		marker, err := c.readLine()
		if errors.Is(err, io.EOF) {
			c.log.Info("server closed the connection")
			return sum, nil
		}
		if err != nil {
			return sum, err
		}
		if marker != protocol.CallMarker {
			return sum, fmt.Errorf("%w: got %q, want %q", ErrUnexpected, marker, protocol.CallMarker)
		}
		if err := c.send(protocol.CallAck); err != nil {
			return sum, err
		}

		st, err := c.readStatus()
		if err != nil {
			return sum, err
		}
		sum.Last = st
		if st.GameOver {
			sum.GameOver = true
			c.log.WithField("turns", sum.Turns).Info("game over")
			return sum, nil
		}

		cmd := c.strategy.Next(st)
		if err := c.send(cmd.Encode()); err != nil {
			return sum, err
		}
		sum.Turns++

		res, err := c.readStatus()
		if err != nil {
			return sum, err
		}
		sum.Last = res
		if err := c.send(protocol.ResultAck); err != nil {
			return sum, err
		}
		c.log.WithField("command", cmd.String()).WithField("result", res.Encode()).Debug("command played")
		if res.GameOver {
			sum.GameOver = true
			c.log.WithField("turns", sum.Turns).Info("game over")
			return sum, nil
		}
	}
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) send(msg string) error {
	b, err := c.enc.NewEncoder().Bytes([]byte(msg + protocol.Terminator))
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", msg, err)
	}
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("failed to send %q: %w", msg, err)
	}
	return nil
}

func (c *Client) readLine() (string, error) {
	s, err := c.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && s == "" {
			return "", io.EOF
		}
		return "", fmt.Errorf("failed to read from server: %w", err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (c *Client) readStatus() (protocol.Status, error) {
	s, err := c.readLine()
	if err != nil {
		return protocol.Status{}, err
	}
	return protocol.DecodeStatus(s)
}
