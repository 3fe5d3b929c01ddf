package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

const recentResultsLimit = 10

var errInvalidRequest = errors.New("invalid request")

type sessionService interface {
	Create(ctx context.Context, hostName string) (string, error)
	Get(ctx context.Context, id string) (entity.SessionSummary, error)
	Snapshot(ctx context.Context, id string) (entity.Snapshot, error)
	ListWaiting(ctx context.Context) []entity.SessionSummary
	ListPlaying(ctx context.Context) []entity.SessionSummary
	Join(ctx context.Context, id, guestName string) error
	Move(ctx context.Context, id, playerName string, cell int) error
	RequestRestart(ctx context.Context, id, playerName string) error
	QuickMatch(ctx context.Context, playerName string) (string, entity.Role, error)
}

type broadcaster interface {
	SessionUpdated(sessionID string, snapshot entity.Snapshot)
}

type statsReader interface {
	GetByName(ctx context.Context, name string) (entity.PlayerStats, error)
	RecentResults(ctx context.Context, name string, limit int) ([]entity.MatchResult, error)
}

type Handlers struct {
	logger      *slog.Logger
	sessions    sessionService
	broadcaster broadcaster
	stats       statsReader
	validate    *validator.Validate
}

// NewHandlers builds the REST handlers. stats may be nil when statistics are disabled.
func NewHandlers(logger *slog.Logger, sessions sessionService, broadcaster broadcaster, stats statsReader) *Handlers {
	return &Handlers{
		logger:      logger,
		sessions:    sessions,
		broadcaster: broadcaster,
		stats:       stats,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

type createSessionRequest struct {
	HostName string `json:"hostName" validate:"required,max=64"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type joinSessionRequest struct {
	GuestName string `json:"guestName" validate:"required,max=64"`
}

type makeMoveRequest struct {
	PlayerName string `json:"playerName" validate:"required,max=64"`
	CellIndex  *int   `json:"cellIndex" validate:"required"`
}

type playerRequest struct {
	PlayerName string `json:"playerName" validate:"required,max=64"`
}

type quickMatchResponse struct {
	SessionID string      `json:"sessionId"`
	Role      entity.Role `json:"role"`
}

type statsResponse struct {
	entity.PlayerStats
	Recent []entity.MatchResult `json:"recent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := that.decode(r, &req); err != nil {
		that.writeError(w, err)
		return
	}

	id, err := that.sessions.Create(r.Context(), req.HostName)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, createSessionResponse{SessionID: id})
}

func (that *Handlers) ListWaiting(w http.ResponseWriter, r *http.Request) {
	that.writeJSON(w, http.StatusOK, that.sessions.ListWaiting(r.Context()))
}

func (that *Handlers) ListPlaying(w http.ResponseWriter, r *http.Request) {
	that.writeJSON(w, http.StatusOK, that.sessions.ListPlaying(r.Context()))
}

func (that *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := that.sessions.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, snapshot)
}

func (that *Handlers) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req joinSessionRequest
	if err := that.decode(r, &req); err != nil {
		that.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if err := that.sessions.Join(r.Context(), id, req.GuestName); err != nil {
		that.writeError(w, err)
		return
	}

	that.respondWithSnapshot(r.Context(), w, id)
}

func (that *Handlers) MakeMove(w http.ResponseWriter, r *http.Request) {
	var req makeMoveRequest
	if err := that.decode(r, &req); err != nil {
		that.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if err := that.sessions.Move(r.Context(), id, req.PlayerName, *req.CellIndex); err != nil {
		that.writeError(w, err)
		return
	}

	that.respondWithSnapshot(r.Context(), w, id)
}

func (that *Handlers) RequestRestart(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := that.decode(r, &req); err != nil {
		that.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if err := that.sessions.RequestRestart(r.Context(), id, req.PlayerName); err != nil {
		that.writeError(w, err)
		return
	}

	that.respondWithSnapshot(r.Context(), w, id)
}

func (that *Handlers) QuickMatch(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := that.decode(r, &req); err != nil {
		that.writeError(w, err)
		return
	}

	id, role, err := that.sessions.QuickMatch(r.Context(), req.PlayerName)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.broadcast(r.Context(), id)

	that.writeJSON(w, http.StatusOK, quickMatchResponse{SessionID: id, Role: role})
}

func (that *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	if that.stats == nil {
		that.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "statistics are disabled"})
		return
	}

	name, err := entity.NormalizeName(r.PathValue("name"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	stats, err := that.stats.GetByName(r.Context(), name)
	if err != nil {
		that.writeError(w, err)
		return
	}

	recent, err := that.stats.RecentResults(r.Context(), name, recentResultsLimit)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, statsResponse{PlayerStats: stats, Recent: recent})
}

// respondWithSnapshot pushes the new state to realtime subscribers and returns it to the caller.
func (that *Handlers) respondWithSnapshot(ctx context.Context, w http.ResponseWriter, id string) {
	snapshot, err := that.sessions.Snapshot(ctx, id)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.broadcaster.SessionUpdated(id, snapshot)

	that.writeJSON(w, http.StatusOK, snapshot)
}

func (that *Handlers) broadcast(ctx context.Context, id string) {
	snapshot, err := that.sessions.Snapshot(ctx, id)
	if err != nil {
		return
	}

	that.broadcaster.SessionUpdated(id, snapshot)
}

func (that *Handlers) decode(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: %w", errInvalidRequest, err)
	}

	if err := that.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %w", errInvalidRequest, err)
	}

	return nil
}

func (that *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Warn("failed to write response", "error", err)
	}
}

func (that *Handlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		that.logger.Error("request failed", "error", err)
	}

	that.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, apperror.ErrInvalidName),
		errors.Is(err, apperror.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrInvalidState),
		errors.Is(err, apperror.ErrPlayerNotInSession),
		errors.Is(err, apperror.ErrWrongTurn),
		errors.Is(err, apperror.ErrCellOccupied),
		errors.Is(err, apperror.ErrGameFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
