// Package model contains domain models passed between layers.
package model

import "time"

// MaxUsernameLength bounds User.Username in characters.
const MaxUsernameLength = 50

// User is a leaderboard participant as stored by the score store.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Score     int64     `json:"score"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RankedUser is a User with its dense rank. Users with equal scores share a
// rank and the next distinct score gets the following rank.
type RankedUser struct {
	User
	Rank int `json:"rank"`
}

// Outranks reports whether u sorts before o: higher score first, then lower id.
func (u User) Outranks(o User) bool {
	if u.Score != o.Score {
		return u.Score > o.Score
	}
	return u.ID < o.ID
}
