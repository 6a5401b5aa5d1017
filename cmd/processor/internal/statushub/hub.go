package statushub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/tracker"
)

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

var validKinds = map[string]bool{
	tracker.EventRegistered: true,
	tracker.EventConfirmed:  true,
	tracker.EventRejected:   true,
	tracker.EventExpired:    true,
}

var _ tracker.EventSink = (*Hub)(nil)

// Hub fans delivery lifecycle events out to subscribed websocket clients.
type Hub struct {
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]bool

	logger *zap.Logger
	mu     sync.RWMutex
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]bool),
		logger:      logger,
	}
}

func (h *Hub) HandleCommand(client ClientInterface, req WSRequest) {
	switch req.Action {
	case ActionSubscribe:
		h.handleSubscribe(client, req)
	case ActionUnsubscribe:
		h.handleUnsubscribe(client, req)
	case ActionUnsubscribeAll:
		h.handleUnsubscribeAll(client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSubscribe(client ClientInterface, req WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var valid []string
	for _, k := range req.Payload.Kinds {
		if validKinds[k] {
			// Idempotency: Ignore if already subscribed
			if h.clientSubs[client] != nil && h.clientSubs[client][k] {
				continue
			}
			valid = append(valid, k)
		}
	}

	if len(valid) == 0 {
		h.sendError(client, req.ID, "No valid/new event kinds provided")
		return
	}

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}

	for _, k := range valid {
		h.clientSubs[client][k] = true
		if h.subscribers[k] == nil {
			h.subscribers[k] = make(map[ClientInterface]bool)
		}
		h.subscribers[k][client] = true
	}

	h.sendAck(client, req.ID, "success", fmt.Sprintf("Subscribed to %v", valid))
}

func (h *Hub) handleUnsubscribe(client ClientInterface, req WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []string
	if subs, ok := h.clientSubs[client]; ok {
		for _, k := range req.Payload.Kinds {
			if subs[k] {
				delete(subs, k)
				delete(h.subscribers[k], client)
				removed = append(removed, k)
			}
		}
	}

	if len(removed) > 0 {
		h.sendAck(client, req.ID, "success", fmt.Sprintf("Unsubscribed from %v", removed))
	} else {
		h.sendError(client, req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Kinds))
	}
}

func (h *Hub) handleUnsubscribeAll(client ClientInterface, req WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for k := range subs {
			delete(h.subscribers[k], client)
		}
		// Clear the map but keep the client registered
		h.clientSubs[client] = make(map[string]bool)
	}
	h.sendAck(client, req.ID, "success", "Unsubscribed from all event kinds")
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for k := range subs {
			delete(h.subscribers[k], client)
		}
		delete(h.clientSubs, client)
	}
	client.Close()
}

// Publish implements tracker.EventSink: the event goes to every client
// subscribed to its kind.
func (h *Hub) Publish(ctx context.Context, ev tracker.Event) {
	msg, err := json.Marshal(WSResponse{Type: "event", Data: ev})
	if err != nil {
		h.logger.Error("Could not encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.subscribers[ev.Kind]; ok {
		for client := range clients {
			client.SendBytes(msg)
		}
	}
}

func (h *Hub) sendAck(c ClientInterface, id, status, msg string) {
	c.SendJSON(WSResponse{Type: "ack", ID: id, Status: status, Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(WSResponse{Type: "error", ID: id, Message: msg})
}
