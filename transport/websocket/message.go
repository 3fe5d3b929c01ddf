package websocket

import "encoding/json"

// inbound actions
const (
	actionSubscribe = "subscribe"
	actionJoin      = "session:join"
	actionMove      = "session:move"
	actionRestart   = "session:restart"
	actionLeave     = "session:leave"
)

// outbound events
const (
	EventSessionUpdated       = "SessionUpdated"
	EventOpponentDisconnected = "OpponentDisconnected"
	EventOpponentReconnected  = "OpponentReconnected"
	EventOpponentLeft         = "OpponentLeft"
	EventError                = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribeRequest struct {
	SessionID  string `json:"sessionId" validate:"required"`
	PlayerName string `json:"playerName"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type moveRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	CellIndex *int   `json:"cellIndex" validate:"required"`
}

type leaveRequest struct {
	SessionID  string `json:"sessionId" validate:"required"`
	PlayerName string `json:"playerName"`
}

type playerEvent struct {
	PlayerName string `json:"playerName"`
}

type disconnectedEvent struct {
	PlayerName string `json:"playerName"`
	Seconds    int    `json:"seconds"`
}

type errorEvent struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}
