package liveness

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

const DefaultGracePeriod = 10 * time.Second

type sessionRegistry interface {
	Snapshot(ctx context.Context, id string) (entity.Snapshot, error)
	Join(ctx context.Context, id, guestName string) error
	Move(ctx context.Context, id, playerName string, cell int) error
	RequestRestart(ctx context.Context, id, playerName string) error
	Leave(ctx context.Context, id, playerName string) bool
}

// Notifier delivers session events to every connection subscribed to a session.
type Notifier interface {
	SessionUpdated(sessionID string, snapshot entity.Snapshot)
	OpponentDisconnected(sessionID, playerName string, graceSeconds int)
	OpponentReconnected(sessionID, playerName string)
	OpponentLeft(sessionID, playerName string)

	SendSnapshot(connID string, snapshot entity.Snapshot)
	AddToGroup(connID, sessionID string)
	RemoveFromGroup(connID, sessionID string)
}

type binding struct {
	sessionID  string
	playerName string
}

type pendingDisconnect struct {
	sessionID  string
	playerName string
	timer      Timer
}

// Coordinator ties realtime connections to session seats and turns dropped connections
// into a leave once the grace period runs out without a reconnect.
type Coordinator struct {
	logger   *slog.Logger
	registry sessionRegistry
	notifier Notifier

	scheduler   Scheduler
	gracePeriod time.Duration

	bindingsMu sync.RWMutex
	bindings   map[string]binding

	pendingMu sync.Mutex
	pending   map[string]*pendingDisconnect
}

type Option func(*Coordinator)

func WithGracePeriod(gracePeriod time.Duration) Option {
	return func(that *Coordinator) {
		if gracePeriod > 0 {
			that.gracePeriod = gracePeriod
		}
	}
}

func WithScheduler(scheduler Scheduler) Option {
	return func(that *Coordinator) {
		that.scheduler = scheduler
	}
}

func New(logger *slog.Logger, registry sessionRegistry, notifier Notifier, opts ...Option) *Coordinator {
	coordinator := &Coordinator{
		logger:      logger,
		registry:    registry,
		notifier:    notifier,
		scheduler:   clockScheduler{},
		gracePeriod: DefaultGracePeriod,
		bindings:    make(map[string]binding),
		pending:     make(map[string]*pendingDisconnect),
	}

	for _, opt := range opts {
		opt(coordinator)
	}

	return coordinator
}

// Subscribe binds the connection to a seat, cancels a pending disconnect of the same player
// and sends the caller the current state of the session.
func (that *Coordinator) Subscribe(ctx context.Context, connID, sessionID, playerName string) error {
	log := that.logger.With("method", "Subscribe", "session_id", sessionID, "conn_id", connID)

	name, err := entity.NormalizeName(playerName)
	if err != nil {
		return err
	}

	snapshot, err := that.registry.Snapshot(ctx, sessionID)
	if err != nil {
		return err
	}

	// bind before cancelling: a concurrent drop of the same seat either sees this binding
	// or has already scheduled a timer that the cancel below stops
	that.bindingsMu.Lock()
	previous, rebound := that.bindings[connID]
	that.bindings[connID] = binding{sessionID: sessionID, playerName: name}
	that.bindingsMu.Unlock()

	if that.cancelPending(pendingKey(sessionID, name)) {
		log.Info("player reconnected within grace period", "player", name)
		that.notifier.OpponentReconnected(sessionID, name)
	}

	if rebound && previous.sessionID != sessionID {
		that.notifier.RemoveFromGroup(connID, previous.sessionID)
	}

	that.notifier.AddToGroup(connID, sessionID)
	that.notifier.SendSnapshot(connID, snapshot)

	log.Debug("connection subscribed", "player", name)

	return nil
}

// JoinSession seats the subscribed player as guest.
func (that *Coordinator) JoinSession(ctx context.Context, connID, sessionID string) error {
	bound, err := that.requireBinding(connID, sessionID)
	if err != nil {
		return err
	}

	if err = that.registry.Join(ctx, sessionID, bound.playerName); err != nil {
		return err
	}

	that.broadcastSnapshot(ctx, sessionID)

	return nil
}

func (that *Coordinator) MakeMove(ctx context.Context, connID, sessionID string, cell int) error {
	bound, err := that.requireBinding(connID, sessionID)
	if err != nil {
		return err
	}

	if err = that.registry.Move(ctx, sessionID, bound.playerName, cell); err != nil {
		return err
	}

	that.broadcastSnapshot(ctx, sessionID)

	return nil
}

func (that *Coordinator) RequestRestart(ctx context.Context, connID, sessionID string) error {
	bound, err := that.requireBinding(connID, sessionID)
	if err != nil {
		return err
	}

	if err = that.registry.RequestRestart(ctx, sessionID, bound.playerName); err != nil {
		return err
	}

	that.broadcastSnapshot(ctx, sessionID)

	return nil
}

// ExplicitLeave leaves immediately, without a grace period. playerName may be blank,
// the bound name is used then.
func (that *Coordinator) ExplicitLeave(ctx context.Context, connID, sessionID, playerName string) error {
	log := that.logger.With("method", "ExplicitLeave", "session_id", sessionID, "conn_id", connID)

	bound, err := that.requireBinding(connID, sessionID)
	if err != nil {
		return err
	}

	if name := strings.TrimSpace(playerName); name != "" && !entity.SameName(name, bound.playerName) {
		return apperror.ErrInvalidBinding
	}

	that.cancelPending(pendingKey(sessionID, bound.playerName))

	that.bindingsMu.Lock()
	delete(that.bindings, connID)
	that.bindingsMu.Unlock()

	that.notifier.RemoveFromGroup(connID, sessionID)

	that.leave(ctx, sessionID, bound.playerName)

	log.Info("player left", "player", bound.playerName)

	return nil
}

// OnConnectionDropped starts the grace period for the player bound to a lost connection.
// It never fails: an unbound connection is ignored.
func (that *Coordinator) OnConnectionDropped(connID string) {
	log := that.logger.With("method", "OnConnectionDropped", "conn_id", connID)

	that.bindingsMu.Lock()
	bound, ok := that.bindings[connID]
	delete(that.bindings, connID)
	that.bindingsMu.Unlock()

	if !ok || bound.playerName == "" {
		log.Debug("dropped connection had no binding")
		return
	}

	that.notifier.RemoveFromGroup(connID, bound.sessionID)

	key := pendingKey(bound.sessionID, bound.playerName)
	p := &pendingDisconnect{sessionID: bound.sessionID, playerName: bound.playerName}

	// lock order: pendingMu, then bindingsMu
	that.pendingMu.Lock()
	defer that.pendingMu.Unlock()

	that.bindingsMu.RLock()
	stillBound := that.isBoundLocked(bound)
	that.bindingsMu.RUnlock()

	if stillBound {
		log.Debug("player still has another connection", "session_id", bound.sessionID, "player", bound.playerName)
		return
	}

	if old, exists := that.pending[key]; exists {
		old.timer.Stop()
	}
	that.pending[key] = p
	p.timer = that.scheduler.AfterFunc(that.gracePeriod, func() {
		that.expire(key, p)
	})

	log.Info("grace period started", "session_id", bound.sessionID, "player", bound.playerName, "grace", that.gracePeriod)

	// sent under pendingMu so a racing reconnect is announced after this
	that.notifier.OpponentDisconnected(bound.sessionID, bound.playerName, that.graceSeconds())
}

// PendingDisconnects reports how many grace periods are running.
func (that *Coordinator) PendingDisconnects() int {
	that.pendingMu.Lock()
	defer that.pendingMu.Unlock()

	return len(that.pending)
}

// Close stops every running grace period without leaving.
func (that *Coordinator) Close() {
	that.pendingMu.Lock()
	defer that.pendingMu.Unlock()

	for key, p := range that.pending {
		p.timer.Stop()
		delete(that.pending, key)
	}
}

// expire runs when a grace period elapses. It acts only if p is still the pending entry for key,
// so a reconnect or a newer disconnect that got the lock first wins.
func (that *Coordinator) expire(key string, p *pendingDisconnect) {
	log := that.logger.With("method", "expire", "session_id", p.sessionID, "player", p.playerName)

	that.pendingMu.Lock()
	if that.pending[key] != p {
		that.pendingMu.Unlock()
		log.Debug("grace period already cancelled")
		return
	}
	delete(that.pending, key)
	that.pendingMu.Unlock()

	log.Info("grace period expired")

	that.leave(context.Background(), p.sessionID, p.playerName)
}

func (that *Coordinator) leave(ctx context.Context, sessionID, playerName string) {
	deleted := that.registry.Leave(ctx, sessionID, playerName)

	that.notifier.OpponentLeft(sessionID, playerName)

	if !deleted {
		that.broadcastSnapshot(ctx, sessionID)
	}
}

func (that *Coordinator) cancelPending(key string) bool {
	that.pendingMu.Lock()
	defer that.pendingMu.Unlock()

	p, ok := that.pending[key]
	if !ok {
		return false
	}

	p.timer.Stop()
	delete(that.pending, key)

	return true
}

func (that *Coordinator) requireBinding(connID, sessionID string) (binding, error) {
	that.bindingsMu.RLock()
	bound, ok := that.bindings[connID]
	that.bindingsMu.RUnlock()

	if !ok {
		return binding{}, apperror.ErrNotSubscribed
	}

	if bound.sessionID != sessionID {
		return binding{}, apperror.ErrInvalidBinding
	}

	if bound.playerName == "" {
		return binding{}, apperror.ErrInvalidName
	}

	return bound, nil
}

// isBoundLocked reports whether some connection holds the same seat. Caller holds bindingsMu.
func (that *Coordinator) isBoundLocked(seat binding) bool {
	for _, other := range that.bindings {
		if other.sessionID == seat.sessionID && entity.SameName(other.playerName, seat.playerName) {
			return true
		}
	}
	return false
}

func (that *Coordinator) broadcastSnapshot(ctx context.Context, sessionID string) {
	log := that.logger.With("method", "broadcastSnapshot", "session_id", sessionID)

	snapshot, err := that.registry.Snapshot(ctx, sessionID)
	if err != nil {
		log.Debug("no snapshot to broadcast", "error", err)
		return
	}

	that.notifier.SessionUpdated(sessionID, snapshot)
}

func (that *Coordinator) graceSeconds() int {
	return int(math.Ceil(that.gracePeriod.Seconds()))
}

// pendingKey folds case like entity.SameName, so one seat has one key.
func pendingKey(sessionID, playerName string) string {
	return sessionID + "|" + strings.ToLower(strings.TrimSpace(playerName))
}
