package auth

import (
	"context"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

type User struct {
	Id uint64 `db:"id" json:"id"`
}

func (u User) Actor() *garden.Actor {
	return &garden.Actor{UserId: u.Id}
}

type contextKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(contextKey{}).(User)
	return u, ok
}
