package entity

import "time"

// Snapshot is the externally visible state of a session at one instant. It shares no memory with the Session.
type Snapshot struct {
	SessionID         string            `json:"sessionId"`
	Status            SessionStatus     `json:"status"`
	HostName          string            `json:"hostName"`
	GuestName         *string           `json:"guestName"`
	Cells             [BoardSize]Symbol `json:"cells"`
	CurrentTurn       Symbol            `json:"currentTurn"`
	Winner            *Symbol           `json:"winner"`
	WinningLine       []int             `json:"winningLine"`
	HostWantsRevenge  bool              `json:"hostWantsRevenge"`
	GuestWantsRevenge bool              `json:"guestWantsRevenge"`
	HostSymbol        Symbol            `json:"hostSymbol"`
	GuestSymbol       Symbol            `json:"guestSymbol"`
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	ID        string        `json:"id"`
	HostName  string        `json:"hostName"`
	GuestName *string       `json:"guestName"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (that *Session) Snapshot() Snapshot {
	snapshot := Snapshot{
		SessionID:         that.ID,
		Status:            that.Status,
		HostName:          that.HostName,
		GuestName:         optionalName(that.GuestName),
		Cells:             that.Game.Cells,
		CurrentTurn:       that.Game.CurrentTurn,
		HostWantsRevenge:  that.HostWantsRevenge,
		GuestWantsRevenge: that.GuestWantsRevenge,
		HostSymbol:        that.HostSymbol,
		GuestSymbol:       that.GuestSymbol,
	}

	if that.Game.Winner != SymbolNone {
		winner := that.Game.Winner
		snapshot.Winner = &winner
	}

	if that.Game.WinningLine != nil {
		snapshot.WinningLine = append([]int(nil), that.Game.WinningLine...)
	}

	return snapshot
}

func (that *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:        that.ID,
		HostName:  that.HostName,
		GuestName: optionalName(that.GuestName),
		Status:    that.Status,
		CreatedAt: that.CreatedAt,
	}
}

func optionalName(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}
