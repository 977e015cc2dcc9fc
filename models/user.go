package models

import "time"

// User represents an account that owns ads
// Password holds a bcrypt hash; never returned in JSON responses
type User struct {
	ID        int       `json:"id" db:"id"`
	Login     string    `json:"login" db:"user_login"`
	Password  string    `json:"-" db:"user_password"`
	FullName  string    `json:"full_name" db:"full_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LoginRequest for /login API (cookie session)
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// MeResponse is the session user as seen by clients
type MeResponse struct {
	ID       int    `json:"id"`
	Login    string `json:"login"`
	FullName string `json:"full_name"`
}
