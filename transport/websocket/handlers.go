package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var errInvalidPayload = errors.New("invalid payload")

func (that *Server) handleSubscribe(ctx context.Context, connID string, message *Message) error {
	var req subscribeRequest
	if err := that.decode(message, &req); err != nil {
		return err
	}

	return that.coordinator.Subscribe(ctx, connID, req.SessionID, req.PlayerName)
}

func (that *Server) handleJoin(ctx context.Context, connID string, message *Message) error {
	var req sessionRequest
	if err := that.decode(message, &req); err != nil {
		return err
	}

	return that.coordinator.JoinSession(ctx, connID, req.SessionID)
}

func (that *Server) handleMove(ctx context.Context, connID string, message *Message) error {
	var req moveRequest
	if err := that.decode(message, &req); err != nil {
		return err
	}

	return that.coordinator.MakeMove(ctx, connID, req.SessionID, *req.CellIndex)
}

func (that *Server) handleRestart(ctx context.Context, connID string, message *Message) error {
	var req sessionRequest
	if err := that.decode(message, &req); err != nil {
		return err
	}

	return that.coordinator.RequestRestart(ctx, connID, req.SessionID)
}

func (that *Server) handleLeave(ctx context.Context, connID string, message *Message) error {
	var req leaveRequest
	if err := that.decode(message, &req); err != nil {
		return err
	}

	return that.coordinator.ExplicitLeave(ctx, connID, req.SessionID, req.PlayerName)
}

func (that *Server) decode(message *Message, target any) error {
	if len(message.Payload) == 0 {
		return errInvalidPayload
	}

	if err := json.Unmarshal(message.Payload, target); err != nil {
		return fmt.Errorf("%w: %w", errInvalidPayload, err)
	}

	if err := that.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %w", errInvalidPayload, err)
	}

	return nil
}
