package entity

import "time"

// MatchResult is emitted once per game that reaches Finished.
type MatchResult struct {
	SessionID  string    `json:"sessionId"`
	HostName   string    `json:"hostName"`
	GuestName  string    `json:"guestName"`
	WinnerName string    `json:"winnerName,omitempty"`
	Draw       bool      `json:"draw"`
	Forfeit    bool      `json:"forfeit"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (that MatchResult) LoserName() string {
	switch that.WinnerName {
	case "":
		return ""
	case that.HostName:
		return that.GuestName
	default:
		return that.HostName
	}
}

type PlayerStats struct {
	Name   string `json:"name"`
	Wins   int64  `json:"wins"`
	Losses int64  `json:"losses"`
	Draws  int64  `json:"draws"`
}
