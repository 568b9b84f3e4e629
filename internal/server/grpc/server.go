// Package grpcserver exposes the event-keeper gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/event-keeper/internal/api/eventsv1"
	"github.com/and161185/event-keeper/internal/changeset"
	"github.com/and161185/event-keeper/internal/convert"
	"github.com/and161185/event-keeper/internal/errs"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/service"
)

// Server wires the event service into gRPC handlers. Handlers expect the
// manager id placed in the context by AuthUnary.
type Server struct {
	events service.EventService
}

var _ eventsv1.EventsServer = (*Server)(nil)

// New constructs a gRPC server with the injected service.
func New(events service.EventService) *Server {
	return &Server{events: events}
}

// GetEvent returns the stored event with its conflict token.
func (s *Server) GetEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	managerID, ok := ManagerIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	publicID, err := publicIDOf(convert.FromStruct(req))
	if err != nil {
		return nil, err
	}
	ev, err := s.events.Get(ctx, managerID, publicID)
	if err != nil {
		return nil, toStatus("get event", err)
	}
	return eventResult(ev)
}

// SaveEvent merges a flat save request, creating the event when needed.
func (s *Server) SaveEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	managerID, ok := ManagerIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	ev, err := s.events.Save(ctx, managerID, convert.FromStruct(req))
	if err != nil {
		return nil, toStatus("save event", err)
	}
	return eventResult(ev)
}

// ApplyChanges applies an incremental {changes, metadata} payload.
func (s *Server) ApplyChanges(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	managerID, ok := ManagerIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	obj := convert.FromStruct(req)
	publicID, err := publicIDOf(obj)
	if err != nil {
		return nil, err
	}
	var st string
	if raw, present := obj[model.KeyStatus]; present && raw != nil {
		v, isStr := raw.(string)
		if !isStr {
			return nil, status.Error(codes.InvalidArgument, "status must be a string")
		}
		st = v
	}
	env, err := changeset.ParseEnvelope(obj)
	if err != nil {
		return nil, toStatus("apply changes", err)
	}
	ev, err := s.events.ApplyChanges(ctx, managerID, service.ChangesRequest{
		PublicID: publicID,
		Envelope: env,
		Status:   st,
	})
	if err != nil {
		return nil, toStatus("apply changes", err)
	}
	return eventResult(ev)
}

// GetHistory returns recorded revisions, newest first.
func (s *Server) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	managerID, ok := ManagerIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	obj := convert.FromStruct(req)
	publicID, err := publicIDOf(obj)
	if err != nil {
		return nil, err
	}
	var limit int
	if raw, present := obj[convert.KeyLimit]; present && raw != nil {
		n, isNum := jsonval.Number(raw)
		if !isNum || math.IsNaN(n) || n < 0 {
			return nil, status.Error(codes.InvalidArgument, "bad limit")
		}
		limit = int(math.Min(n, service.MaxHistoryLimit))
	}
	revs, err := s.events.History(ctx, managerID, publicID, limit)
	if err != nil {
		return nil, toStatus("get history", err)
	}
	out, err := convert.ToHistoryResult(revs)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode history: %v", err)
	}
	return out, nil
}

func publicIDOf(obj jsonval.Object) (string, error) {
	id, _ := obj[model.KeyPublicID].(string)
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "empty public_id")
	}
	return id, nil
}

func eventResult(ev *model.Event) (*structpb.Struct, error) {
	out, err := convert.ToEventResult(ev)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode event: %v", err)
	}
	return out, nil
}

// toStatus maps domain sentinels onto gRPC codes.
func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrVersionConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "no auth")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, fmt.Sprintf("%s: %v", op, err))
	}
}
