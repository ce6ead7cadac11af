package main

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var errEmailTaken = errors.New("email address is already registered")

// User is the sample document managed by the struvedb program.
type User struct {
	UUID      uuid.UUID `json:"uuid"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) PrimaryKey() uuid.UUID {
	return u.UUID
}

// Intersects treats e-mail addresses as case-insensitive unique values
func (u User) Intersects(other User) error {
	if strings.EqualFold(u.Email, other.Email) {
		return errEmailTaken
	}
	return nil
}
