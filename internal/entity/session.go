package entity

import (
	"strings"
	"time"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
)

type SessionStatus string

const (
	StatusWaiting  SessionStatus = "Waiting"
	StatusPlaying  SessionStatus = "Playing"
	StatusFinished SessionStatus = "Finished"
)

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// LeaveDecision tells the owner of a session what a leave turned into.
type LeaveDecision int

const (
	LeaveReturnToWaiting LeaveDecision = iota
	LeaveForfeitToOpponent
	LeaveDeleteSession
)

func (d LeaveDecision) String() string {
	switch d {
	case LeaveReturnToWaiting:
		return "return_to_waiting"
	case LeaveForfeitToOpponent:
		return "forfeit_to_opponent"
	case LeaveDeleteSession:
		return "delete_session"
	default:
		return "unknown"
	}
}

// Session seats a host and an optional guest around one Game.
// It has no locking of its own, the registry serializes every call.
type Session struct {
	ID        string
	CreatedAt time.Time

	HostName  string
	GuestName string
	Status    SessionStatus
	Game      *Game

	HostSymbol  Symbol
	GuestSymbol Symbol

	HostWantsRevenge  bool
	GuestWantsRevenge bool
}

func NewSession(id, hostName string, createdAt time.Time) (*Session, error) {
	name, err := NormalizeName(hostName)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:          id,
		CreatedAt:   createdAt,
		HostName:    name,
		Status:      StatusWaiting,
		Game:        NewGame(),
		HostSymbol:  SymbolX,
		GuestSymbol: SymbolO,
	}, nil
}

// SameName reports whether two display names denote the same seat. Seats ignore case.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeName trims a display name and rejects blank input.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ErrInvalidName
	}
	return name, nil
}

func (that *Session) Join(guestName string) error {
	name, err := NormalizeName(guestName)
	if err != nil {
		return err
	}

	if that.Status != StatusWaiting || that.HasGuest() {
		return apperror.ErrInvalidState
	}

	if SameName(name, that.HostName) {
		return apperror.ErrInvalidName
	}

	that.GuestName = name
	that.Status = StatusPlaying

	return nil
}

func (that *Session) MakeMove(playerName string, cell int) error {
	role, err := that.roleOf(playerName)
	if err != nil {
		return err
	}

	if that.Status == StatusWaiting {
		return apperror.ErrInvalidState
	}

	if err = that.Game.ApplyMove(that.symbolOf(role), cell); err != nil {
		return err
	}

	if that.Game.IsFinished() {
		that.finish()
	}

	return nil
}

// RequestRestart records one half of the rematch handshake. Once both seated players agreed,
// or the host is alone after a forfeit, a new game starts.
func (that *Session) RequestRestart(playerName string) error {
	role, err := that.roleOf(playerName)
	if err != nil {
		return err
	}

	if that.Status != StatusFinished {
		return apperror.ErrInvalidState
	}

	if role == RoleHost {
		that.HostWantsRevenge = true
	} else {
		that.GuestWantsRevenge = true
	}

	if that.HostWantsRevenge && (that.GuestWantsRevenge || !that.HasGuest()) {
		that.restart()
	}

	return nil
}

// Leave vacates the player's seat. A host leaving is never applied here: the caller
// receives LeaveDeleteSession and drops the session.
func (that *Session) Leave(playerName string) (LeaveDecision, error) {
	role, err := that.roleOf(playerName)
	if err != nil {
		return LeaveReturnToWaiting, err
	}

	if role == RoleHost {
		return LeaveDeleteSession, nil
	}

	if that.Status == StatusPlaying && that.Game.MovesMade() > 0 {
		that.Game.ForceFinish(that.HostSymbol)
		that.GuestName = ""
		that.finish()
		return LeaveForfeitToOpponent, nil
	}

	that.GuestName = ""
	that.HostWantsRevenge = false
	that.GuestWantsRevenge = false
	that.Game = NewGame()
	that.HostSymbol = SymbolX
	that.GuestSymbol = SymbolO
	that.Status = StatusWaiting

	return LeaveReturnToWaiting, nil
}

func (that *Session) HasGuest() bool {
	return that.GuestName != ""
}

func (that *Session) IsFinished() bool {
	return that.Status == StatusFinished
}

// Result describes the finished game. ok is false unless the session is Finished with both seats taken.
func (that *Session) Result(finishedAt time.Time) (MatchResult, bool) {
	if !that.IsFinished() || !that.HasGuest() {
		return MatchResult{}, false
	}

	result := MatchResult{
		SessionID:  that.ID,
		HostName:   that.HostName,
		GuestName:  that.GuestName,
		Draw:       that.Game.IsDraw(),
		FinishedAt: finishedAt,
	}

	switch that.Game.Winner {
	case that.HostSymbol:
		result.WinnerName = that.HostName
	case that.GuestSymbol:
		result.WinnerName = that.GuestName
	}

	return result, true
}

func (that *Session) roleOf(playerName string) (Role, error) {
	name, err := NormalizeName(playerName)
	if err != nil {
		return "", err
	}

	switch {
	case SameName(name, that.HostName):
		return RoleHost, nil
	case that.HasGuest() && SameName(name, that.GuestName):
		return RoleGuest, nil
	default:
		return "", apperror.ErrPlayerNotInSession
	}
}

func (that *Session) symbolOf(role Role) Symbol {
	if role == RoleHost {
		return that.HostSymbol
	}
	return that.GuestSymbol
}

func (that *Session) finish() {
	that.Status = StatusFinished
	that.HostWantsRevenge = false
	that.GuestWantsRevenge = false
}

// restart swaps symbols for a rematch. A host left alone goes back to X, like a session that was just created.
func (that *Session) restart() {
	that.Game = NewGame()
	that.HostWantsRevenge = false
	that.GuestWantsRevenge = false

	if that.HasGuest() {
		that.HostSymbol, that.GuestSymbol = that.GuestSymbol, that.HostSymbol
		that.Status = StatusPlaying
	} else {
		that.HostSymbol, that.GuestSymbol = SymbolX, SymbolO
		that.Status = StatusWaiting
	}
}
