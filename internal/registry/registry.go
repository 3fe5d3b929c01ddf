package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

type resultRecorder interface {
	RecordResult(ctx context.Context, result entity.MatchResult) error
}

// Registry owns every live session. All access to a Session goes through the registry lock,
// so a caller never observes a half-applied operation.
type Registry struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entity.Session

	recorder resultRecorder
	now      func() time.Time
	newID    func() string
}

type Option func(*Registry)

// WithResultRecorder stores the outcome of every finished game.
func WithResultRecorder(recorder resultRecorder) Option {
	return func(that *Registry) {
		that.recorder = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(that *Registry) {
		that.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(that *Registry) {
		that.newID = newID
	}
}

func New(logger *slog.Logger, opts ...Option) *Registry {
	registry := &Registry{
		logger:   logger,
		sessions: make(map[string]*entity.Session),
		now:      time.Now,
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(registry)
	}

	return registry
}

func (that *Registry) Create(_ context.Context, hostName string) (string, error) {
	log := that.logger.With("method", "Create")

	that.mu.Lock()
	defer that.mu.Unlock()

	session, err := that.createLocked(hostName)
	if err != nil {
		return "", err
	}

	log.Info("session created", "session_id", session.ID, "host", session.HostName)

	return session.ID, nil
}

func (that *Registry) Get(_ context.Context, id string) (entity.SessionSummary, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[id]
	if !ok {
		return entity.SessionSummary{}, apperror.ErrNotFound
	}

	return session.Summary(), nil
}

func (that *Registry) Snapshot(_ context.Context, id string) (entity.Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[id]
	if !ok {
		return entity.Snapshot{}, apperror.ErrNotFound
	}

	return session.Snapshot(), nil
}

func (that *Registry) ListWaiting(_ context.Context) []entity.SessionSummary {
	return that.list(entity.StatusWaiting)
}

func (that *Registry) ListPlaying(_ context.Context) []entity.SessionSummary {
	return that.list(entity.StatusPlaying)
}

func (that *Registry) Join(_ context.Context, id, guestName string) error {
	log := that.logger.With("method", "Join")

	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[id]
	if !ok {
		return apperror.ErrNotFound
	}

	if err := session.Join(guestName); err != nil {
		return err
	}

	log.Info("guest joined", "session_id", id, "guest", session.GuestName)

	return nil
}

func (that *Registry) Move(ctx context.Context, id, playerName string, cell int) error {
	result, err := that.mutate(id, func(session *entity.Session) error {
		return session.MakeMove(playerName, cell)
	})
	if err != nil {
		return err
	}

	that.record(ctx, result)

	return nil
}

func (that *Registry) RequestRestart(ctx context.Context, id, playerName string) error {
	log := that.logger.With("method", "RequestRestart")

	if _, err := that.mutate(id, func(session *entity.Session) error {
		return session.RequestRestart(playerName)
	}); err != nil {
		return err
	}

	log.Debug("restart requested", "session_id", id, "player", playerName)

	return nil
}

// Leave applies the seat policy of the session and reports whether the session was deleted.
// Unknown sessions, unknown players and blank names are logged no-ops.
func (that *Registry) Leave(ctx context.Context, id, playerName string) bool {
	log := that.logger.With("method", "Leave", "session_id", id)

	that.mu.Lock()

	session, ok := that.sessions[id]
	if !ok {
		that.mu.Unlock()
		log.Debug("leave for unknown session ignored")
		return false
	}

	hostName, guestName := session.HostName, session.GuestName

	decision, err := session.Leave(playerName)
	if err != nil {
		that.mu.Unlock()
		log.Warn("leave ignored", "player", playerName, "error", err)
		return false
	}

	var forfeit *entity.MatchResult

	switch decision {
	case entity.LeaveDeleteSession:
		delete(that.sessions, id)
	case entity.LeaveForfeitToOpponent:
		forfeit = &entity.MatchResult{
			SessionID:  id,
			HostName:   hostName,
			GuestName:  guestName,
			WinnerName: hostName,
			Forfeit:    true,
			FinishedAt: that.now(),
		}
	}

	that.mu.Unlock()

	log.Info("player left", "player", playerName, "decision", decision.String())

	that.record(ctx, forfeit)

	return decision == entity.LeaveDeleteSession
}

// QuickMatch seats the caller as guest in the oldest waiting session hosted by someone else.
// Otherwise it returns the caller's own waiting session, or creates one.
func (that *Registry) QuickMatch(_ context.Context, playerName string) (string, entity.Role, error) {
	log := that.logger.With("method", "QuickMatch")

	name, err := entity.NormalizeName(playerName)
	if err != nil {
		return "", "", err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	var own *entity.Session

	for _, session := range that.sortedLocked(entity.StatusWaiting) {
		if session.HasGuest() {
			continue
		}

		if entity.SameName(session.HostName, name) {
			if own == nil {
				own = session
			}
			continue
		}

		if err = session.Join(name); err != nil {
			return "", "", err
		}

		log.Info("matched into waiting session", "session_id", session.ID, "guest", name)

		return session.ID, entity.RoleGuest, nil
	}

	if own != nil {
		return own.ID, entity.RoleHost, nil
	}

	session, err := that.createLocked(name)
	if err != nil {
		return "", "", err
	}

	log.Info("no opponent waiting, session created", "session_id", session.ID, "host", name)

	return session.ID, entity.RoleHost, nil
}

// mutate runs fn on the session under the lock and returns the match result if fn finished the game.
func (that *Registry) mutate(id string, fn func(session *entity.Session) error) (*entity.MatchResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}

	wasFinished := session.IsFinished()

	if err := fn(session); err != nil {
		return nil, err
	}

	if wasFinished || !session.IsFinished() {
		return nil, nil
	}

	result, ok := session.Result(that.now())
	if !ok {
		return nil, nil
	}

	return &result, nil
}

func (that *Registry) record(ctx context.Context, result *entity.MatchResult) {
	if result == nil || that.recorder == nil {
		return
	}

	log := that.logger.With("method", "record", "session_id", result.SessionID)

	if err := that.recorder.RecordResult(ctx, *result); err != nil {
		log.Error("failed to record match result", "error", err)
	}
}

func (that *Registry) createLocked(hostName string) (*entity.Session, error) {
	session, err := entity.NewSession(that.newID(), hostName, that.now())
	if err != nil {
		return nil, err
	}

	that.sessions[session.ID] = session

	return session, nil
}

func (that *Registry) list(status entity.SessionStatus) []entity.SessionSummary {
	that.mu.Lock()
	defer that.mu.Unlock()

	sessions := that.sortedLocked(status)

	summaries := make([]entity.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, session.Summary())
	}

	return summaries
}

func (that *Registry) sortedLocked(status entity.SessionStatus) []*entity.Session {
	sessions := make([]*entity.Session, 0, len(that.sessions))
	for _, session := range that.sessions {
		if session.Status == status {
			sessions = append(sessions, session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})

	return sessions
}
