package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type coordinator interface {
	Subscribe(ctx context.Context, connID, sessionID, playerName string) error
	JoinSession(ctx context.Context, connID, sessionID string) error
	MakeMove(ctx context.Context, connID, sessionID string, cell int) error
	RequestRestart(ctx context.Context, connID, sessionID string) error
	ExplicitLeave(ctx context.Context, connID, sessionID, playerName string) error
	OnConnectionDropped(connID string)
}

type handlerFunc func(ctx context.Context, connID string, message *Message) error

type Server struct {
	logger      *slog.Logger
	hub         *Hub
	coordinator coordinator

	upgrader websocket.Upgrader
	validate *validator.Validate

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, hub *Hub, coordinator coordinator, allowedOrigins []string) *Server {
	server := &Server{
		logger:      logger,
		hub:         hub,
		coordinator: coordinator,
		validate:    validator.New(validator.WithRequiredStructEnabled()),

		handlers: make(map[string]handlerFunc),
	}

	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	server.handlers[actionSubscribe] = server.handleSubscribe
	server.handlers[actionJoin] = server.handleJoin
	server.handlers[actionMove] = server.handleMove
	server.handlers[actionRestart] = server.handleRestart
	server.handlers[actionLeave] = server.handleLeave

	return server
}

// Start - starts WebSocket server, it stops when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", that)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (that *Server) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "ServeHTTP")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	connID := uuid.NewString()
	c := that.hub.register(connID)

	log.Info("WebSocket connection established", "conn_id", connID)

	go that.writePump(conn, c)

	that.readPump(req.Context(), conn, connID)

	that.coordinator.OnConnectionDropped(connID)
	that.hub.unregister(connID)

	log.Info("WebSocket connection closed", "conn_id", connID)
}

// readPump - processes messages from the client.
func (that *Server) readPump(ctx context.Context, conn *websocket.Conn, connID string) {
	log := that.logger.With("method", "readPump", "conn_id", connID)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection lost", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			that.sendError(connID, "", fmt.Errorf("%w: %w", errInvalidPayload, err))
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			that.sendError(connID, message.Action, fmt.Errorf("unknown action %q", message.Action))
			continue
		}

		if err := handler(ctx, connID, &message); err != nil {
			log.Debug("action rejected", "action", message.Action, "error", err)
			that.sendError(connID, message.Action, err)
		}
	}
}

func (that *Server) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (that *Server) sendError(connID, action string, err error) {
	that.hub.SendTo(connID, EventError, errorEvent{Action: action, Error: err.Error()})
}

// originChecker allows requests without an Origin header and the configured origins.
// "*" allows any origin.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
	}
}
