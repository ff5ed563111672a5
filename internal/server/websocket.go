package server

import (
	"encoding/json"
	"math"
	"math/cmplx"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Sangstbk/liquid-dsp/internal/modem"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// clientQueue is the number of messages buffered per client before new
// ones are dropped for it.
const clientQueue = 64

// gainLimitDB bounds the reported gain magnitudes. Null subcarriers read as
// the lower bound.
const gainLimitDB = 200

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatePayload mirrors a modem.StateEvent.
type StatePayload struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Reason      string    `json:"reason"`
	Sample      uint64    `json:"sample"`
	Acquisition uuid.UUID `json:"acquisition"`
	CFO         float64   `json:"cfo"`
	Metric      float64   `json:"metric"`
}

// GainPayload carries the equalizer gain magnitudes of one estimate.
type GainPayload struct {
	Acquisition uuid.UUID `json:"acquisition"`
	MagnitudeDB []float64 `json:"magnitudeDb"` // clamped to ±200 dB
	Undefined   []int     `json:"undefined,omitempty"`
}

// SymbolPayload carries one demapped payload symbol.
type SymbolPayload struct {
	Acquisition uuid.UUID    `json:"acquisition"`
	Index       int          `json:"index"`
	Points      [][2]float64 `json:"points"`
	PilotPhases [4]float64   `json:"pilotPhases"`
}

// Snapshot is the monitor's view of the synchronizer.
type Snapshot struct {
	State          string    `json:"state"`
	Acquisition    uuid.UUID `json:"acquisition"`
	CFO            float64   `json:"cfo"`
	FramesAcquired int       `json:"framesAcquired"`
	Timeouts       int       `json:"timeouts"`
	Symbols        int       `json:"symbols"`
	UndefinedGains []int     `json:"undefinedGains,omitempty"`
	LastChange     time.Time `json:"lastChange"`
	Clients        int       `json:"clients"`
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// WSHub manages WebSocket connections and relays synchronizer events to
// them. It implements modem.Observer; events are queued per client so the
// receive loop never blocks on a slow connection.
type WSHub struct {
	log     *zap.Logger
	clients map[uuid.UUID]*client
	snap    Snapshot
	mu      sync.RWMutex
}

var _ modem.Observer = (*WSHub)(nil)

// NewWSHub creates a new WebSocket hub.
func NewWSHub(log *zap.Logger) *WSHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHub{
		log:     log,
		clients: make(map[uuid.UUID]*client),
		snap:    Snapshot{State: modem.SeekShort.String()},
	}
}

// AddClient registers a new WebSocket connection and starts its writer.
func (h *WSHub) AddClient(conn *websocket.Conn) uuid.UUID {
	c := &client{id: uuid.New(), conn: conn, send: make(chan []byte, clientQueue)}
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("websocket client connected", zap.Stringer("client", c.id), zap.Int("clients", n))

	go h.writeLoop(c)
	return c.id
}

func (h *WSHub) writeLoop(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn("websocket write failed", zap.Stringer("client", c.id), zap.Error(err))
			h.RemoveClient(c.id)
			return
		}
	}
}

// RemoveClient removes a WebSocket connection.
func (h *WSHub) RemoveClient(id uuid.UUID) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	_ = c.conn.Close()
	h.log.Info("websocket client disconnected", zap.Stringer("client", id), zap.Int("clients", n))
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message for all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("websocket marshal failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Debug("websocket client queue full; dropping message",
				zap.Stringer("client", id), zap.String("type", msg.Type))
		}
	}
}

// Snapshot returns the current monitor status.
func (h *WSHub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.snap
	s.UndefinedGains = append([]int(nil), h.snap.UndefinedGains...)
	s.Clients = len(h.clients)
	return s
}

// StateChanged implements modem.Observer.
func (h *WSHub) StateChanged(ev modem.StateEvent) {
	h.mu.Lock()
	h.snap.State = ev.To.String()
	h.snap.Acquisition = ev.Acquisition
	h.snap.CFO = ev.CFO
	h.snap.LastChange = time.Now()
	if ev.To == modem.Receive {
		h.snap.FramesAcquired++
	}
	if ev.Reason == modem.ReasonTimeout {
		h.snap.Timeouts++
	}
	h.mu.Unlock()

	h.Broadcast(WSMessage{
		Type: "state",
		Payload: StatePayload{
			From:        ev.From.String(),
			To:          ev.To.String(),
			Reason:      ev.Reason.String(),
			Sample:      ev.Sample,
			Acquisition: ev.Acquisition,
			CFO:         ev.CFO,
			Metric:      ev.Metric,
		},
	})
}

// GainEstimated implements modem.Observer.
func (h *WSHub) GainEstimated(ev modem.GainEvent) {
	mags := make([]float64, len(ev.Gains))
	for i, g := range ev.Gains {
		mags[i] = gainDB(g)
	}

	h.mu.Lock()
	h.snap.UndefinedGains = append(h.snap.UndefinedGains[:0], ev.Undefined...)
	h.mu.Unlock()

	h.Broadcast(WSMessage{
		Type:    "gain",
		Payload: GainPayload{Acquisition: ev.Acquisition, MagnitudeDB: mags, Undefined: ev.Undefined},
	})
}

// gainDB returns |g| in dB within ±gainLimitDB. A NaN gain reads as the
// lower bound so the payload stays valid JSON.
func gainDB(g complex128) float64 {
	db := 20 * math.Log10(cmplx.Abs(g))
	if math.IsNaN(db) {
		return -gainLimitDB
	}
	return math.Max(-gainLimitDB, math.Min(gainLimitDB, db))
}

// SymbolReceived implements modem.Observer.
func (h *WSHub) SymbolReceived(ev modem.SymbolEvent) {
	points := make([][2]float64, len(ev.Data))
	for i, v := range ev.Data {
		points[i] = [2]float64{real(v), imag(v)}
	}

	h.mu.Lock()
	h.snap.Symbols++
	h.mu.Unlock()

	h.Broadcast(WSMessage{
		Type: "symbol",
		Payload: SymbolPayload{
			Acquisition: ev.Acquisition,
			Index:       ev.Index,
			Points:      points,
			PilotPhases: ev.PilotPhases,
		},
	})
}
