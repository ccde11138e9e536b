package models

import "time"

// GameMatch statuses. Transitions are one-directional:
// waiting → in_progress → completed, or waiting → cancelled.
const (
	MatchWaiting    = "waiting"
	MatchInProgress = "in_progress"
	MatchCompleted  = "completed"
	MatchCancelled  = "cancelled"
)

// GameMatch is one paid game session. No money moves at creation or join;
// entry fees are deducted on the start transition and the winner payout is
// credited on the complete transition. WinnerID is set exactly once.
type GameMatch struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	GameID      string  `gorm:"type:uuid;not null;index" json:"game_id"`
	EntryAmount float64 `gorm:"not null" json:"entry_amount"`
	Status      string  `gorm:"type:varchar(16);not null;default:'waiting';index" json:"status"`

	CreatedBy string  `gorm:"type:uuid;not null" json:"created_by"`
	WinnerID  *string `gorm:"type:uuid" json:"winner_id,omitempty"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Timestamps

	Game    Game          `json:"game,omitempty" gorm:"foreignKey:GameID"`
	Players []PlayerMatch `json:"players,omitempty" gorm:"foreignKey:MatchID"`
}

// PlayerMatch statuses
const (
	PlayerJoined = "joined"
	PlayerWon    = "won"
	PlayerLost   = "lost"
	PlayerLeft   = "left"
)

// PlayerMatch is the join record tying a user to a match. One row per
// (match, user) pair; duplicate joins are rejected.
type PlayerMatch struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID string `gorm:"type:uuid;not null;index:idx_player_match,unique" json:"match_id"`
	UserID  string `gorm:"type:uuid;not null;index:idx_player_match,unique" json:"user_id"`
	Status  string `gorm:"type:varchar(16);not null;default:'joined'" json:"status"`
	IsBot   bool   `gorm:"default:false" json:"is_bot"`

	Timestamps
}
