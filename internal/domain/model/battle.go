package model

import "time"

type BattleStatus string

const (
	BattleWaiting    BattleStatus = "WAITING"
	BattleInProgress BattleStatus = "IN_PROGRESS"
	BattleFinished   BattleStatus = "FINISHED"
	BattleCancelled  BattleStatus = "CANCELLED"
)

// IsTerminal reports whether the battle can no longer change status.
func (s BattleStatus) IsTerminal() bool {
	return s == BattleFinished || s == BattleCancelled
}

type Battle struct {
	ID              string       `json:"id"`
	RoomCode        *string      `json:"room_code,omitempty"` // Private rooms only
	ProblemID       string       `json:"problem_id"`
	Status          BattleStatus `json:"status"`
	MaxParticipants int          `json:"max_participants"`
	DurationSeconds int          `json:"duration_seconds"`
	IsPrivate       bool         `json:"is_private"`
	WinnerID        *string      `json:"winner_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
	FinishedAt      *time.Time   `json:"finished_at,omitempty"`
}

type BattleParticipant struct {
	ID           string    `json:"id"`
	BattleID     string    `json:"battle_id"`
	UserID       string    `json:"user_id"`
	IsReady      bool      `json:"is_ready"`
	HasSubmitted bool      `json:"has_submitted"`
	Score        int       `json:"score"`
	JoinedAt     time.Time `json:"joined_at"`
	Username     *string   `json:"username,omitempty"` // For display
}
