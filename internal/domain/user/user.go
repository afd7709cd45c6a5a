package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user: not found")

// User carries the display fields resolved onto orders. Authentication is
// handled outside this service.
type User struct {
	ID      string
	Name    string
	Email   string
	IsAdmin bool
}

type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, u *User) error
}
