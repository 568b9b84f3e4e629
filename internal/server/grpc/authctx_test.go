package grpcserver

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
)

func TestWithManagerID_And_ManagerIDFromCtx(t *testing.T) {
	t.Parallel()

	if id, ok := ManagerIDFromCtx(context.Background()); ok || id != uuid.Nil {
		t.Fatalf("expected no manager id in empty ctx")
	}

	want := uuid.Must(uuid.NewV4())
	ctx := WithManagerID(context.Background(), want)

	got, ok := ManagerIDFromCtx(ctx)
	if !ok {
		t.Fatalf("expected manager id in ctx")
	}
	if got != want {
		t.Fatalf("mismatch: got %s, want %s", got, want)
	}

	if _, ok := ManagerIDFromCtx(WithManagerID(context.Background(), uuid.Nil)); ok {
		t.Fatalf("expected miss on nil uuid")
	}

	type ctxKey string
	const managerIDKey ctxKey = "ek.managerID"
	bad := context.WithValue(context.Background(), managerIDKey, "not-uuid")
	if id, ok := ManagerIDFromCtx(bad); ok || id != uuid.Nil {
		t.Fatalf("expected miss on wrong typed value")
	}
}
