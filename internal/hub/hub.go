package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"transitpulse/internal/domain"
)

// Subscriber is one websocket connection and the tiles it watches.
type Subscriber struct {
	ID   string
	Send chan []byte

	mu    sync.RWMutex
	tiles map[string]struct{}
}

func NewSubscriber(id string, bufferSize int) *Subscriber {
	return &Subscriber{
		ID:    id,
		Send:  make(chan []byte, bufferSize),
		tiles: make(map[string]struct{}),
	}
}

func (s *Subscriber) Watches(tileID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tiles[tileID]
	return ok
}

func (s *Subscriber) Tiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tiles := make([]string, 0, len(s.tiles))
	for id := range s.tiles {
		tiles = append(tiles, id)
	}
	return tiles
}

// Offer queues msg without blocking. It reports false when the buffer is full.
func (s *Subscriber) Offer(msg []byte) bool {
	select {
	case s.Send <- msg:
		return true
	default:
		return false
	}
}

// Hub fans vehicle deltas out to the subscribers watching the affected tiles.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	byTile      map[string]map[*Subscriber]struct{}

	// Register and unregister share one queue so they are applied in call order.
	ops       chan membership
	broadcast chan []domain.VehicleDelta

	// OnCountChange is called with the subscriber count after every change.
	OnCountChange func(n int)

	logger *slog.Logger
}

type membership struct {
	sub  *Subscriber
	join bool
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		byTile:      make(map[string]map[*Subscriber]struct{}),
		ops:         make(chan membership, 32),
		broadcast:   make(chan []domain.VehicleDelta, 64),
		logger:      logger.With("component", "hub"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case op := <-h.ops:
			if op.join {
				h.add(op.sub)
			} else {
				h.remove(op.sub)
			}

		case deltas := <-h.broadcast:
			h.fanout(deltas)
		}
	}
}

func (h *Hub) Register(sub *Subscriber) {
	h.ops <- membership{sub: sub, join: true}
}

func (h *Hub) Unregister(sub *Subscriber) {
	h.ops <- membership{sub: sub}
}

func (h *Hub) Subscribe(sub *Subscriber, tileIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub.mu.Lock()
	for _, id := range tileIDs {
		sub.tiles[id] = struct{}{}
		if h.byTile[id] == nil {
			h.byTile[id] = make(map[*Subscriber]struct{})
		}
		h.byTile[id][sub] = struct{}{}
	}
	sub.mu.Unlock()
}

func (h *Hub) Unsubscribe(sub *Subscriber, tileIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub.mu.Lock()
	for _, id := range tileIDs {
		delete(sub.tiles, id)
	}
	sub.mu.Unlock()

	h.detach(sub, tileIDs)
}

// Broadcast queues deltas for fan-out. Deltas are dropped when the queue is full;
// the next poll produces a fresh diff anyway.
func (h *Hub) Broadcast(deltas []domain.VehicleDelta) {
	if len(deltas) == 0 {
		return
	}
	select {
	case h.broadcast <- deltas:
	default:
		h.logger.Warn("broadcast queue full, dropping deltas", "count", len(deltas))
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

type Message struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	Vehicles []*domain.VehiclePosition `json:"vehicles,omitempty"`
	Removes  []string                  `json:"removes,omitempty"`
}

type snapshotPayload struct {
	Vehicles []*domain.VehiclePosition `json:"vehicles"`
}

// SnapshotMessage encodes the full vehicle list sent right after a subscribe.
func SnapshotMessage(vehicles []*domain.VehiclePosition) ([]byte, error) {
	if vehicles == nil {
		vehicles = []*domain.VehiclePosition{}
	}
	return json.Marshal(struct {
		Type    string          `json:"type"`
		Payload snapshotPayload `json:"payload"`
	}{"snapshot", snapshotPayload{Vehicles: vehicles}})
}

func deltaMessage(deltas []domain.VehicleDelta) Message {
	msg := Message{Type: "delta"}
	for _, d := range deltas {
		switch d.Type {
		case domain.DeltaUpdate:
			msg.Payload.Vehicles = append(msg.Payload.Vehicles, d.Vehicle)
		case domain.DeltaRemove:
			msg.Payload.Removes = append(msg.Payload.Removes, d.Key)
		}
	}
	return msg
}

func (h *Hub) fanout(deltas []domain.VehicleDelta) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	perSub := make(map[*Subscriber][]domain.VehicleDelta)
	for _, d := range deltas {
		for sub := range h.byTile[d.TileID] {
			perSub[sub] = append(perSub[sub], d)
		}
	}

	for sub, ds := range perSub {
		data, err := json.Marshal(deltaMessage(ds))
		if err != nil {
			h.logger.Error("encoding delta message", "error", err)
			continue
		}
		if !sub.Offer(data) {
			h.logger.Debug("subscriber buffer full", "subscriber_id", sub.ID)
		}
	}
}

func (h *Hub) detach(sub *Subscriber, tileIDs []string) {
	for _, id := range tileIDs {
		subs := h.byTile[id]
		if subs == nil {
			continue
		}
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.byTile, id)
		}
	}
}

func (h *Hub) add(sub *Subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()

	h.countChanged(n)
	h.logger.Debug("subscriber registered", "subscriber_id", sub.ID, "total", n)
}

func (h *Hub) remove(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; !ok {
		h.mu.Unlock()
		return
	}
	h.detach(sub, sub.Tiles())
	delete(h.subscribers, sub)
	close(sub.Send)
	n := len(h.subscribers)
	h.mu.Unlock()

	h.countChanged(n)
	h.logger.Debug("subscriber unregistered", "subscriber_id", sub.ID, "total", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for sub := range h.subscribers {
		close(sub.Send)
	}
	h.subscribers = make(map[*Subscriber]struct{})
	h.byTile = make(map[string]map[*Subscriber]struct{})
	h.mu.Unlock()

	h.countChanged(0)
}

func (h *Hub) countChanged(n int) {
	if h.OnCountChange != nil {
		h.OnCountChange(n)
	}
}
