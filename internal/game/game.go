package game

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/KDT2006/chaser/internal/grid"
	"github.com/KDT2006/chaser/internal/notify"
	"github.com/KDT2006/chaser/internal/protocol"
	"github.com/KDT2006/chaser/internal/session"
)

type GameState byte

const (
	GameStateWaiting GameState = iota
	GameStatePlaying
	GameStateFinished
)

func (s GameState) String() string {
	switch s {
	case GameStateWaiting:
		return "waiting"
	case GameStatePlaying:
		return "playing"
	case GameStateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

var (
	errUnknownMethod   = errors.New("unknown method")
	errNoCommand       = errors.New("no command received")
	errNotAcknowledged = errors.New("result not acknowledged")
)

// Session is the network side of a match.
type Session interface {
	Connections() *notify.Feed[session.ConnectionEvent]
	StartAccept()
	TeamName(grid.Side) string
	RequestCall(grid.Side, protocol.Status) protocol.Command
	NotifyResult(grid.Side, protocol.Status) bool
	Close()
}

// Game referees one match between Cool and Hot. The floor is only touched
// from the goroutine running Run.
type Game struct {
	ID        uuid.UUID
	Name      string
	grid      *grid.Grid
	session   Session
	turnLimit int
	events    Events
	log       *log.Entry

	mu           sync.RWMutex
	state        GameState
	turn         int
	players      [2]Player
	disconnected [2]bool
	lineErr      [2]error
}

type Option func(*Game)

func WithLogger(l *log.Entry) Option {
	return func(g *Game) { g.log = l }
}

// WithName sets the display name of the map being played.
func WithName(name string) Option {
	return func(g *Game) { g.Name = name }
}

// New prepares a match on floor. A negative turnLimit means no limit.
func New(floor *grid.Grid, s Session, turnLimit int, opts ...Option) *Game {
	g := &Game{
		ID:        uuid.New(),
		grid:      floor,
		session:   s,
		turnLimit: turnLimit,
		log:       log.NewEntry(log.StandardLogger()),
		state:     GameStateWaiting,
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, side := range grid.Sides {
		g.players[side].Side = side
	}
	g.log = g.log.WithField("match", g.ID.String())
	return g
}

// Events returns the feeds of this match. Subscribe before Run.
func (g *Game) Events() *Events {
	return &g.events
}

func (g *Game) GetState() GameState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Game) Turn() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.turn
}

func (g *Game) Player(side grid.Side) Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.players[side]
}

func (g *Game) TurnLimit() int { return g.turnLimit }

// Run waits for both sides, plays the match to its end and disposes the
// connections. It performs no socket I/O after it returns.
func (g *Game) Run() Outcome {
	defer g.session.Close()

	sub := g.session.Connections().Subscribe(g.onConnection)
	defer sub.Unsubscribe()

	if out, ok := g.waitForConnections(); !ok {
		return g.finish(out)
	}

	g.setState(GameStatePlaying)
	g.log.WithField("cool", g.Player(grid.Cool).Name).WithField("hot", g.Player(grid.Hot).Name).Info("game started")
	return g.play()
}

func (g *Game) onConnection(e session.ConnectionEvent) {
	g.mu.Lock()
	switch e.State {
	case session.Connected:
		g.players[e.Side].Connected = true
	case session.Disconnected, session.AbortedWithError:
		g.players[e.Side].Connected = false
		g.disconnected[e.Side] = true
		if e.Err != nil {
			g.lineErr[e.Side] = e.Err
		}
	}
	g.mu.Unlock()

	g.events.Connection.Publish(e)
}

func (g *Game) waitForConnections() (Outcome, bool) {
	g.log.Info("waiting for both sides to connect")

	// at most one accept result per side
	results := make(chan session.ConnectionEvent, len(grid.Sides))
	sub := g.session.Connections().Subscribe(func(e session.ConnectionEvent) {
		if e.State == session.Connected || e.State == session.AbortedWithError {
			results <- e
		}
	})
	defer sub.Unsubscribe()

	g.session.StartAccept()

	for range grid.Sides {
		e := <-results
		if e.State == session.AbortedWithError {
			return Outcome{Reason: ReasonConnectFailure, Side: e.Side, Err: e.Err}, false
		}

		name := g.session.TeamName(e.Side)
		g.mu.Lock()
		g.players[e.Side].Name = name
		g.mu.Unlock()
		g.events.TeamName.Publish(TeamEvent{Side: e.Side, Name: name})
	}
	return Outcome{}, true
}

func (g *Game) play() Outcome {
	for {
		g.nextTurn()

		var informed [2]bool
		for _, side := range grid.Sides {
			if g.grid.IsTerminal() {
				break
			}
			gameSet, out, ok := g.playStep(side)
			if !ok {
				return g.finish(out)
			}
			informed[side] = gameSet
		}

		if g.grid.IsTerminal() {
			g.announceEnd(informed)
			return g.finish(Outcome{Reason: ReasonTerminal, Result: g.grid.Result()})
		}

		if g.turnLimit >= 0 && g.Turn() >= g.turnLimit {
			return g.finish(Outcome{Reason: ReasonTurnLimit, Result: grid.Draw})
		}
	}
}

// playStep runs one side's request / apply / notify cycle. gameSet reports
// whether the side was told that the game is over.
func (g *Game) playStep(side grid.Side) (gameSet bool, out Outcome, ok bool) {
	l := g.log.WithField("side", side.String()).WithField("turn", g.Turn())

	cmd := g.session.RequestCall(side, protocol.Status{Cells: g.grid.Neighbourhood(side)})
	if cmd.IsUnknown() {
		l.Warn("no command received, aborting game")
		return false, g.failure(side, errNoCommand), false
	}
	l = l.WithField("command", cmd.String())

	cells, gotItem, err := g.apply(side, cmd)
	if err != nil {
		l.WithError(err).Error("failed to apply command")
		return false, Outcome{Reason: ReasonInternalError, Side: side, Err: err}, false
	}

	gameSet = g.grid.IsTerminal()
	if !g.session.NotifyResult(side, protocol.Status{GameOver: gameSet, Cells: cells}) {
		l.Warn("result not acknowledged, aborting game")
		return false, g.failure(side, errNotAcknowledged), false
	}

	if gotItem {
		g.mu.Lock()
		g.players[side].Items++
		count := g.players[side].Items
		g.mu.Unlock()
		g.events.Items.Publish(ItemEvent{Side: side, Count: count})
	}

	l.WithField("game_set", gameSet).Debug("step played")
	return gameSet, Outcome{}, true
}

// apply runs cmd on the floor and returns the cells reported back.
func (g *Game) apply(side grid.Side, cmd protocol.Command) (cells [9]grid.Cell, gotItem bool, err error) {
	switch cmd.Method {
	case protocol.MethodLook:
		cells, err = g.grid.Look(side, cmd.Direction)
		return cells, false, err
	case protocol.MethodSearch:
		cells, err = g.grid.Search(side, cmd.Direction)
		return cells, false, err
	case protocol.MethodPut:
		err = g.grid.Put(side, cmd.Direction)
	case protocol.MethodWalk:
		gotItem, err = g.grid.Walk(side, cmd.Direction)
	default:
		return cells, false, fmt.Errorf("%w: %v", errUnknownMethod, cmd.Method)
	}
	if err != nil {
		return cells, false, err
	}

	g.events.Grid.Publish(GridEvent{
		Turn:      g.Turn(),
		Side:      side,
		Command:   cmd,
		Rows:      g.grid.Rows(),
		Positions: [2]grid.Point{g.grid.Position(grid.Cool), g.grid.Position(grid.Hot)},
	})
	return g.grid.Neighbourhood(side), gotItem, nil
}

// announceEnd sends a game-over status to every side not yet told, in turn
// order. The verdict stands even if a side has already hung up; sending
// stops at the first failed delivery.
func (g *Game) announceEnd(informed [2]bool) {
	for _, side := range grid.Sides {
		if informed[side] {
			continue
		}
		if !g.sendGameOver(side) {
			g.log.WithField("side", side.String()).WithError(g.sideErr(side)).Warn("game over not delivered")
			return
		}
	}
}

// sendGameOver tells side the game has ended. It reports false if the
// side's line failed while doing so.
func (g *Game) sendGameOver(side grid.Side) bool {
	g.session.RequestCall(side, protocol.Status{GameOver: true, Cells: g.grid.Neighbourhood(side)})

	g.mu.RLock()
	defer g.mu.RUnlock()
	return !g.disconnected[side]
}

// failure builds a protocol-failure outcome for side, preferring the error
// its line reported over fallback.
func (g *Game) failure(side grid.Side, fallback error) Outcome {
	err := g.sideErr(side)
	if err == nil {
		err = fallback
	} else {
		err = fmt.Errorf("%w: %w", fallback, err)
	}
	return Outcome{Reason: ReasonProtocolFailure, Side: side, Err: err}
}

func (g *Game) sideErr(side grid.Side) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lineErr[side]
}

func (g *Game) nextTurn() {
	g.mu.Lock()
	g.turn++
	turn := g.turn
	g.mu.Unlock()

	g.log.WithField("turn", turn).Debug("turn started")
	g.events.Turn.Publish(turn)
}

func (g *Game) setState(s GameState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}

func (g *Game) finish(out Outcome) Outcome {
	g.mu.Lock()
	g.state = GameStateFinished
	out.Turn = g.turn
	for _, side := range grid.Sides {
		out.Items[side] = g.players[side].Items
		out.Teams[side] = g.players[side].Name
	}
	g.mu.Unlock()

	l := g.log.WithField("reason", out.Reason.String()).
		WithField("turn", out.Turn).
		WithField("cool_items", out.Items[grid.Cool]).
		WithField("hot_items", out.Items[grid.Hot])
	if out.Reason.Failed() {
		l.WithField("side", out.Side.String()).WithError(out.Err).Warn("game aborted")
	} else {
		l.WithField("result", out.Result.String()).Info("game finished")
	}

	g.events.Finished.Publish(out)
	return out
}
