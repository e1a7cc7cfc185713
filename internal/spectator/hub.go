// Package spectator publishes a read-only view of a running match over
// HTTP: a JSON snapshot at /match and a websocket event stream at /ws.
package spectator

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/way"
	log "github.com/sirupsen/logrus"

	"github.com/KDT2006/chaser/internal/game"
	"github.com/KDT2006/chaser/internal/grid"
	"github.com/KDT2006/chaser/internal/notify"
	"github.com/KDT2006/chaser/internal/session"
)

const (
	URIMatch = "/match"
	URIWatch = "/ws"

	outboundSize = 16
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type viewer struct {
	conn     *websocket.Conn
	outbound chan []byte
}

// Hub mirrors one match into a snapshot and fans every change out to the
// connected viewers. Viewers that fall behind are dropped.
type Hub struct {
	log *log.Entry

	mu      sync.Mutex
	snap    Snapshot
	viewers map[*viewer]struct{}
	closed  bool

	subs []*notify.Subscription
	wg   sync.WaitGroup
}

// New subscribes to the events of g. floor must be the grid g plays on and
// is read only here, before the match starts.
func New(g *game.Game, floor *grid.Grid, logger *log.Entry) *Hub {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	h := &Hub{
		log:     logger.WithField("component", "spectator"),
		viewers: make(map[*viewer]struct{}),
		snap: Snapshot{
			ID:        g.ID.String(),
			Map:       g.Name,
			Width:     floor.Width(),
			Height:    floor.Height(),
			State:     g.GetState().String(),
			TurnLimit: g.TurnLimit(),
			Rows:      renderRows(floor.Rows()),
		},
	}
	h.snap.Cool.Position = floor.Position(grid.Cool)
	h.snap.Hot.Position = floor.Position(grid.Hot)

	ev := g.Events()
	h.subs = []*notify.Subscription{
		ev.Connection.Subscribe(h.onConnection),
		ev.TeamName.Subscribe(h.onTeam),
		ev.Turn.Subscribe(h.onTurn),
		ev.Items.Subscribe(h.onItems),
		ev.Grid.Subscribe(h.onGrid),
		ev.Finished.Subscribe(h.onFinished),
	}
	return h
}

// Routes returns the HTTP handler serving the hub.
func (h *Hub) Routes() http.Handler {
	router := way.NewRouter()
	router.HandleFunc("GET", URIMatch, h.handleMatch)
	router.HandleFunc("GET", URIWatch, h.handleWatch)
	return router
}

// Snapshot returns a copy of the current view.
func (h *Hub) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap.clone()
}

// Close stops following the match and disconnects every viewer.
func (h *Hub) Close() {
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}

	h.mu.Lock()
	h.closed = true
	for v := range h.viewers {
		h.drop(v)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *Hub) onConnection(e session.ConnectionEvent) {
	h.update(TypeConnection, func(s *Snapshot) {
		s.team(e.Side).Connected = e.State == session.Connected
	})
}

func (h *Hub) onTeam(e game.TeamEvent) {
	h.update(TypeTeam, func(s *Snapshot) {
		s.team(e.Side).Name = e.Name
	})
}

func (h *Hub) onTurn(turn int) {
	h.update(TypeTurn, func(s *Snapshot) {
		s.Turn = turn
		s.State = game.GameStatePlaying.String()
	})
}

func (h *Hub) onItems(e game.ItemEvent) {
	h.update(TypeItems, func(s *Snapshot) {
		s.team(e.Side).Items = e.Count
	})
}

func (h *Hub) onGrid(e game.GridEvent) {
	h.update(TypeGrid, func(s *Snapshot) {
		s.Rows = renderRows(e.Rows)
		s.Cool.Position = e.Positions[grid.Cool]
		s.Hot.Position = e.Positions[grid.Hot]
	})
}

func (h *Hub) onFinished(o game.Outcome) {
	h.update(TypeFinished, func(s *Snapshot) {
		s.State = game.GameStateFinished.String()
		s.Turn = o.Turn
		s.Cool.Items = o.Items[grid.Cool]
		s.Hot.Items = o.Items[grid.Hot]
		s.Outcome = resultOf(o)
	})
}

// update applies fn to the snapshot and broadcasts the result. It never
// blocks on a viewer.
func (h *Hub) update(kind string, fn func(*Snapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn(&h.snap)
	b, err := json.Marshal(Message{Type: kind, Match: h.snap})
	if err != nil {
		h.log.WithError(err).Error("failed to encode event")
		return
	}

	for v := range h.viewers {
		select {
		case v.outbound <- b:
		default:
			h.log.WithField("remote", v.remote()).Warn("viewer too slow to receive, dropping")
			h.drop(v)
		}
	}
}

// drop unregisters v. h.mu must be held.
func (h *Hub) drop(v *viewer) {
	if _, ok := h.viewers[v]; ok {
		delete(h.viewers, v)
		close(v.outbound)
	}
}

func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(v)
}

func (h *Hub) handleMatch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Snapshot()); err != nil {
		h.log.WithError(err).Warn("failed to write snapshot")
	}
}

func (h *Hub) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	v := &viewer{conn: conn, outbound: make(chan []byte, outboundSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	b, err := json.Marshal(Message{Type: TypeSnapshot, Match: h.snap})
	if err != nil {
		h.mu.Unlock()
		h.log.WithError(err).Error("failed to encode snapshot")
		conn.Close()
		return
	}
	v.outbound <- b
	h.viewers[v] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	h.log.WithField("remote", v.remote()).Info("viewer connected")
	go h.writeLoop(v)
	h.readLoop(v)
}

// readLoop only watches for the viewer going away; incoming frames are
// discarded.
func (h *Hub) readLoop(v *viewer) {
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			h.unregister(v)
			return
		}
	}
}

func (h *Hub) writeLoop(v *viewer) {
	defer h.wg.Done()
	defer v.conn.Close()

	for b := range v.outbound {
		v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.WithField("remote", v.remote()).WithError(err).Debug("viewer write failed")
			h.unregister(v)
			// drain until the hub closes the channel
			for range v.outbound {
			}
			return
		}
	}

	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	h.log.WithField("remote", v.remote()).Info("viewer disconnected")
}

func (v *viewer) remote() string {
	if v.conn == nil {
		return ""
	}
	return v.conn.RemoteAddr().String()
}
