// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const (
	MaxUsernameLen = 36

	// AnonymousName is used whenever a client joins without a username.
	AnonymousName = "Anonymous"
)

var (
	ErrUsernameTooLong = errors.New("username too long")
)

type UserID string

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, username string) *User {
	if username == "" {
		username = AnonymousName
	}
	return &User{ID: id, Username: username}
}

func (u *User) SetUsername(username string) error {
	if username == "" {
		u.Username = AnonymousName
		return nil
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}
