package auth

import (
	"context"
	"fmt"

	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/model"
)

type TokenVerifier interface {
	VerifyToken(token string) (int64, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Resolver turns a bearer token into the user it was issued to. Users are
// read from storage on every call.
type Resolver struct {
	tokens TokenVerifier
	users  UserLookup
}

func NewResolver(tokens TokenVerifier, users UserLookup) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve returns apperr.ErrUnauthenticated when the token does not verify
// or its subject no longer exists. Storage failures are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}

	id, err := r.tokens.VerifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, err)
	}

	u, err := r.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if u == nil {
		return nil, apperr.ErrUnauthenticated
	}
	return u, nil
}
