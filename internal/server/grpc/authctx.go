package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const managerIDKey ctxKey = "ek.managerID"

// WithManagerID stores the authenticated manager ID in context.
func WithManagerID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, managerIDKey, id)
}

// ManagerIDFromCtx fetches the manager ID from context.
func ManagerIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(managerIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
