package models

import (
	"strings"
	"time"
)

// Role represents user role in the platform.
type Role string

const (
	RoleUser        Role = "user"
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOrganizer, RoleParticipant:
		return true
	}
	return false
}

// User represents a platform user. Email is stored lowercased.
type User struct {
	ID        string     `json:"_id,omitempty"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Photo     string     `json:"photo,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// NormalizeEmail is the canonical form every email is stored and queried in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
