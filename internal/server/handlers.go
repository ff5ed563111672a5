package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/Sangstbk/liquid-dsp/internal/audio"
	"github.com/Sangstbk/liquid-dsp/internal/modem"
)

// DeviceLister enumerates audio devices. audio.ListDevices in production.
type DeviceLister func() ([]audio.DeviceInfo, error)

// Handlers holds the HTTP API handlers.
type Handlers struct {
	hub     *WSHub
	cfg     modem.Config
	devices DeviceLister
	log     *zap.Logger
}

// NewHandlers creates new API handlers. devices may be nil when no audio
// backend is available.
func NewHandlers(hub *WSHub, cfg modem.Config, devices DeviceLister, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{hub: hub, cfg: cfg, devices: devices, log: log}
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := h.hub.AddClient(conn)

	// Drain client messages until the connection drops.
	go func() {
		defer h.hub.RemoveClient(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleStatus returns the synchronizer status seen by the monitor.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.log, h.hub.Snapshot())
}

// HandleConfig returns the synchronizer configuration.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.log, map[string]any{
		"subcarriers":        modem.NumSubcarriers,
		"filterDelay":        h.cfg.FilterDelay,
		"excessBandwidth":    h.cfg.ExcessBandwidth,
		"autoCorrThreshold":  h.cfg.AutoCorrThreshold,
		"crossCorrThreshold": h.cfg.CrossCorrThreshold,
		"compensateCfo":      h.cfg.CompensateCFO,
	})
}

// HandleDevices lists available audio devices.
func (h *Handlers) HandleDevices(w http.ResponseWriter, r *http.Request) {
	if h.devices == nil {
		http.Error(w, "audio backend unavailable", http.StatusServiceUnavailable)
		return
	}
	devices, err := h.devices()
	if err != nil {
		writeJSON(w, h.log, map[string]any{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, h.log, map[string]any{
		"status":  "ok",
		"devices": devices,
	})
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("write response failed", zap.Error(err))
	}
}
