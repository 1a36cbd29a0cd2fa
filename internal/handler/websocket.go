package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"transitpulse/internal/domain"
	"transitpulse/internal/hub"
	"transitpulse/internal/store"
)

const (
	subscriberBuffer = 256
	maxTilesPerSub   = 64
	pingInterval     = 30 * time.Second
	writeTimeout     = 5 * time.Second
)

// WSHandler streams vehicle deltas for subscribed map tiles.
type WSHandler struct {
	hub       *hub.Hub
	cache     *store.FeedCache
	zoomLevel int
	logger    *slog.Logger
}

func NewWSHandler(h *hub.Hub, cache *store.FeedCache, zoomLevel int, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, cache: cache, zoomLevel: zoomLevel, logger: logger.With("component", "websocket")}
}

type wsRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// tilesPayload selects tiles either explicitly or by a point and radius.
type tilesPayload struct {
	TileIDs []string `json:"tileIds"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	Radius  float64  `json:"radius,omitempty"`
}

func (p tilesPayload) resolve(zoom int) []string {
	if len(p.TileIDs) > 0 {
		// Vehicles are only tagged at the relay's zoom level
		tiles := make([]string, 0, len(p.TileIDs))
		for _, id := range p.TileIDs {
			if z, _, _, ok := hub.ParseTileID(id); ok && z == zoom {
				tiles = append(tiles, id)
			}
		}
		return tiles
	}
	if p.Lat == nil || p.Lon == nil || !domain.ValidCoordinate(*p.Lat, *p.Lon) {
		return nil
	}
	radius := p.Radius
	if radius <= 0 || radius > MaxNearbyRadius {
		radius = MaxNearbyRadius
	}
	return hub.TilesAround(*p.Lat, *p.Lon, radius, zoom)
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	sub := hub.NewSubscriber(uuid.NewString(), subscriberBuffer)
	h.hub.Register(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, sub)
	h.readLoop(ctx, conn, sub)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sub *hub.Subscriber) {
	defer func() {
		h.hub.Unregister(sub)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "subscriber_id", sub.ID, "error", err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.logger.Debug("invalid message", "subscriber_id", sub.ID, "error", err)
			continue
		}

		switch req.Type {
		case "subscribe":
			tiles := h.decodeTiles(req.Payload)
			if len(tiles) == 0 {
				continue
			}
			h.hub.Subscribe(sub, tiles)
			h.sendSnapshot(sub, tiles)

		case "unsubscribe":
			if tiles := h.decodeTiles(req.Payload); len(tiles) > 0 {
				h.hub.Unsubscribe(sub, tiles)
			}

		case "ping":
			sub.Offer([]byte(`{"type":"pong"}`))
		}
	}
}

func (h *WSHandler) decodeTiles(raw json.RawMessage) []string {
	var p tilesPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	tiles := p.resolve(h.zoomLevel)
	if len(tiles) > maxTilesPerSub {
		tiles = tiles[:maxTilesPerSub]
	}
	return tiles
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *hub.Subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-sub.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) sendSnapshot(sub *hub.Subscriber, tileIDs []string) {
	data, err := hub.SnapshotMessage(h.cache.SnapshotForTiles(tileIDs))
	if err != nil {
		h.logger.Error("encoding snapshot", "error", err)
		return
	}
	if !sub.Offer(data) {
		h.logger.Debug("snapshot dropped, buffer full", "subscriber_id", sub.ID)
	}
}
