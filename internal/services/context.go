package services

import (
	"context"

	dirdomain "advisor-chat/internal/domain/directory"

	"github.com/google/uuid"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Identity is the authenticated caller as placed in the request context by the
// auth middleware.
type Identity struct {
	UserID   uuid.UUID
	Role     dirdomain.Role
	OfficeID *uuid.UUID
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return id.UserID, true
}
