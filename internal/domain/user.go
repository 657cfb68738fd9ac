package domain

import (
	"errors"
	"time"
)

var (
	// ErrUserNotFound indicates that the user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongPassword indicates that the given password is wrong.
	ErrWrongPassword = errors.New("invalid credentials")
)

// User holds login credentials for an account owner.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
