package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

const sendBufferSize = 32

type client struct {
	id   string
	send chan []byte
}

// Hub tracks open connections and the session groups they belong to.
// Sends never block: a client whose buffer is full misses the message.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	groups  map[string]map[string]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*client),
		groups:  make(map[string]map[string]struct{}),
	}
}

func (that *Hub) register(connID string) *client {
	c := &client{
		id:   connID,
		send: make(chan []byte, sendBufferSize),
	}

	that.mu.Lock()
	that.clients[connID] = c
	that.mu.Unlock()

	return c
}

// unregister drops the connection from every group and closes its send channel.
func (that *Hub) unregister(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	c, ok := that.clients[connID]
	if !ok {
		return
	}

	delete(that.clients, connID)

	for sessionID, members := range that.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(that.groups, sessionID)
		}
	}

	close(c.send)
}

func (that *Hub) AddToGroup(connID, sessionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.clients[connID]; !ok {
		return
	}

	members, ok := that.groups[sessionID]
	if !ok {
		members = make(map[string]struct{})
		that.groups[sessionID] = members
	}

	members[connID] = struct{}{}
}

func (that *Hub) RemoveFromGroup(connID, sessionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	members, ok := that.groups[sessionID]
	if !ok {
		return
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(that.groups, sessionID)
	}
}

func (that *Hub) SessionUpdated(sessionID string, snapshot entity.Snapshot) {
	that.broadcast(sessionID, EventSessionUpdated, snapshot)
}

func (that *Hub) OpponentDisconnected(sessionID, playerName string, graceSeconds int) {
	that.broadcast(sessionID, EventOpponentDisconnected, disconnectedEvent{PlayerName: playerName, Seconds: graceSeconds})
}

func (that *Hub) OpponentReconnected(sessionID, playerName string) {
	that.broadcast(sessionID, EventOpponentReconnected, playerEvent{PlayerName: playerName})
}

func (that *Hub) OpponentLeft(sessionID, playerName string) {
	that.broadcast(sessionID, EventOpponentLeft, playerEvent{PlayerName: playerName})
}

func (that *Hub) SendSnapshot(connID string, snapshot entity.Snapshot) {
	that.SendTo(connID, EventSessionUpdated, snapshot)
}

// SendTo delivers one message to a single connection.
func (that *Hub) SendTo(connID, action string, payload any) {
	data, ok := that.encode(action, payload)
	if !ok {
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	if c, exists := that.clients[connID]; exists {
		that.enqueue(c, action, data)
	}
}

func (that *Hub) broadcast(sessionID, action string, payload any) {
	data, ok := that.encode(action, payload)
	if !ok {
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for connID := range that.groups[sessionID] {
		if c, exists := that.clients[connID]; exists {
			that.enqueue(c, action, data)
		}
	}
}

// enqueue must run under mu so the channel cannot be closed concurrently.
func (that *Hub) enqueue(c *client, action string, data []byte) {
	select {
	case c.send <- data:
	default:
		that.logger.Warn("send buffer full, message dropped", "conn_id", c.id, "action", action)
	}
}

func (that *Hub) encode(action string, payload any) ([]byte, bool) {
	log := that.logger.With("method", "encode", "action", action)

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal payload", "error", err)
		return nil, false
	}

	data, err := json.Marshal(Message{Action: action, Payload: raw})
	if err != nil {
		log.Error("failed to marshal message", "error", err)
		return nil, false
	}

	return data, true
}
