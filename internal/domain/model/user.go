package model

import "time"

const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	HashedPassword string     `json:"-"` // Not exposed
	Role           string     `json:"role"`
	RatingScore    int        `json:"rating_score"`
	BattlesPlayed  int        `json:"battles_played"`
	BattlesWon     int        `json:"battles_won"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}
