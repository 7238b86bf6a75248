package models

import (
	"time"
)

type User struct {
	ID            string
	Email         string
	PasswordHash  string
	Name          string
	Role          string // one of roles.go
	IsActive      bool
	EmailVerified bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
