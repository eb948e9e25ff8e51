package models

import "github.com/google/uuid"

// User as returned by the backend on login or register
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
}
