package models

import "time"

// User is a registered account. Name is unique and doubles as the login.
type User struct {
	ID           int64
	Name         string
	PasswordHash []byte
	Apartment    string
	Role         Role
	CreatedAt    time.Time
}
