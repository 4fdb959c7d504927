package httpapi

import (
	"context"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

type authContextKey string

const authUserKey authContextKey = "authUser"

// AuthUser represents the authenticated user in context.
type AuthUser struct {
	UserID string
	Email  string
}

// Identity is the user as seen by the coli space rules.
func (u AuthUser) Identity() colispace.Identity {
	return colispace.Identity{UserID: u.UserID, Email: u.Email}
}

func withAuthUser(ctx context.Context, u *AuthUser) context.Context {
	if u == nil {
		return ctx
	}
	return context.WithValue(ctx, authUserKey, u)
}

func authUserFromContext(ctx context.Context) *AuthUser {
	val := ctx.Value(authUserKey)
	if v, ok := val.(*AuthUser); ok {
		return v
	}
	return nil
}

func identityFromContext(ctx context.Context) colispace.Identity {
	if u := authUserFromContext(ctx); u != nil {
		return u.Identity()
	}
	return colispace.Identity{}
}
