package auth

import (
	"context"

	"github.com/dukerupert/flatmate/internal/model"
)

type contextKey struct{}

// WithUser attaches the authenticated principal to ctx.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(contextKey{}).(*model.User)
	return u, ok && u != nil
}

func UserID(ctx context.Context) int64 {
	u, ok := UserFromContext(ctx)
	if !ok {
		return 0
	}
	return u.ID
}
