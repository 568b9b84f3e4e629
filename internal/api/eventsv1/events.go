// Package eventsv1 declares the eventkeeper.v1.Events gRPC service. Requests
// and responses are google.protobuf.Struct values carrying JSON objects, so a
// null field stays distinguishable from an absent one.
package eventsv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified service name.
const ServiceName = "eventkeeper.v1.Events"

// Full method names.
const (
	GetEventMethod     = "/" + ServiceName + "/GetEvent"
	SaveEventMethod    = "/" + ServiceName + "/SaveEvent"
	ApplyChangesMethod = "/" + ServiceName + "/ApplyChanges"
	GetHistoryMethod   = "/" + ServiceName + "/GetHistory"
)

// EventsServer is the server API of the Events service.
type EventsServer interface {
	// GetEvent: {public_id} -> event result.
	GetEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SaveEvent: flat save request -> event result.
	SaveEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ApplyChanges: {public_id, status?, changes, metadata} -> event result.
	ApplyChanges(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetHistory: {public_id, limit?} -> {revisions}.
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterEventsServer registers srv on s.
func RegisterEventsServer(s grpc.ServiceRegistrar, srv EventsServer) {
	s.RegisterService(&Events_ServiceDesc, srv)
}

type call func(EventsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, fn call) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(EventsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(EventsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Events_ServiceDesc is the grpc.ServiceDesc for the Events service.
//
//nolint:revive,stylecheck // mirrors generated descriptor naming
var Events_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetEvent", Handler: unary(GetEventMethod, EventsServer.GetEvent)},
		{MethodName: "SaveEvent", Handler: unary(SaveEventMethod, EventsServer.SaveEvent)},
		{MethodName: "ApplyChanges", Handler: unary(ApplyChangesMethod, EventsServer.ApplyChanges)},
		{MethodName: "GetHistory", Handler: unary(GetHistoryMethod, EventsServer.GetHistory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eventkeeper/v1/events.proto",
}

// EventsClient is the client API of the Events service.
type EventsClient interface {
	GetEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SaveEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ApplyChanges(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetHistory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type eventsClient struct{ cc grpc.ClientConnInterface }

// NewEventsClient returns a client bound to cc.
func NewEventsClient(cc grpc.ClientConnInterface) EventsClient { return &eventsClient{cc: cc} }

func (c *eventsClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *eventsClient) GetEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetEventMethod, in, opts)
}

func (c *eventsClient) SaveEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SaveEventMethod, in, opts)
}

func (c *eventsClient) ApplyChanges(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ApplyChangesMethod, in, opts)
}

func (c *eventsClient) GetHistory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetHistoryMethod, in, opts)
}
