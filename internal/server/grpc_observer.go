package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/netsync"
)

// ObserverServiceName is the fully qualified gRPC service name
const ObserverServiceName = "conquest.v1.ObserverService"

// MatchRequest addresses one match
type MatchRequest struct {
	MatchID    string `json:"match_id"`
	ObserverID string `json:"observer_id,omitempty"`
}

// DispatchRequest carries a player command
type DispatchRequest struct {
	MatchID   string               `json:"match_id"`
	RequestID string               `json:"request_id,omitempty"`
	Command   core.DispatchCommand `json:"command"`
}

// DispatchResponse is the launched group
type DispatchResponse struct {
	Troop core.Troop `json:"troop"`
}

// MatchList is the reply of ListMatches
type MatchList struct {
	Matches []RoomInfo `json:"matches"`
}

// ObserverServer is the gRPC surface of the room manager. Every message is a
// google.protobuf.Struct holding the JSON form of the types in this package.
type ObserverServer interface {
	CreateMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dispatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Watch(*structpb.Struct, grpc.ServerStream) error
}

// ObserverService implements ObserverServer on top of a RoomManager
type ObserverService struct {
	rooms  *RoomManager
	logger zerolog.Logger
}

// NewObserverService creates the gRPC service
func NewObserverService(rooms *RoomManager, logger zerolog.Logger) *ObserverService {
	return &ObserverService{
		rooms:  rooms,
		logger: logger.With().Str("component", "ObserverService").Logger(),
	}
}

func (s *ObserverService) room(id string) (*Room, error) {
	room, ok := s.rooms.Get(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "match %s not found", id)
	}
	return room, nil
}

// CreateMatch starts a new match
func (s *ObserverService) CreateMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CreateRoomRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	room, err := s.rooms.CreateRoom(req)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(room.Info())
}

// ListMatches summarizes every tracked match
func (s *ObserverService) ListMatches(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(MatchList{Matches: s.rooms.List()})
}

// Snapshot returns the full state of one match
func (s *ObserverService) Snapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req MatchRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	room, err := s.room(req.MatchID)
	if err != nil {
		return nil, err
	}
	snap, err := room.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(snap)
}

// Dispatch applies a player command
func (s *ObserverService) Dispatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DispatchRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	room, err := s.room(req.MatchID)
	if err != nil {
		return nil, err
	}
	troop, err := room.Dispatch(ctx, req.Command, req.RequestID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(DispatchResponse{Troop: troop})
}

// Watch sends a snapshot followed by every delta batch until the match
// ends or the client goes away.
func (s *ObserverService) Watch(in *structpb.Struct, stream grpc.ServerStream) error {
	var req MatchRequest
	if err := fromStruct(in, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	room, err := s.room(req.MatchID)
	if err != nil {
		return err
	}
	if req.ObserverID == "" {
		req.ObserverID = uuid.NewString()
	}

	obs, snap, err := room.Join(stream.Context(), req.ObserverID)
	if err != nil {
		return toStatus(err)
	}
	defer room.Leave(obs)

	logger := s.logger.With().
		Str("match_id", req.MatchID).
		Str("observer_id", obs.ID()).
		Logger()
	logger.Info().Msg("Observer connected to watch stream")

	if err := s.send(stream, snap.Message()); err != nil {
		return err
	}

	for {
		select {
		case batch, ok := <-obs.Updates():
			if !ok {
				logger.Info().Msg("Watch stream closed by room")
				return nil
			}
			for _, msg := range batch {
				if err := s.send(stream, msg); err != nil {
					logger.Warn().Err(err).Msg("Failed to send message")
					return err
				}
			}
		case <-stream.Context().Done():
			logger.Info().Msg("Observer disconnected from watch stream")
			return nil
		}
	}
}

func (s *ObserverService) send(stream grpc.ServerStream, msg netsync.Message) error {
	out, err := toStruct(msg)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(out)
}

func observerUnaryHandler(call func(ObserverServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ObserverServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ObserverServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ObserverServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func observerWatchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ObserverServer).Watch(in, stream)
}

// ObserverServiceDesc describes the service for grpc.Server.RegisterService
var ObserverServiceDesc = grpc.ServiceDesc{
	ServiceName: ObserverServiceName,
	HandlerType: (*ObserverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateMatch", Handler: observerUnaryHandler(ObserverServer.CreateMatch, "CreateMatch")},
		{MethodName: "ListMatches", Handler: observerUnaryHandler(ObserverServer.ListMatches, "ListMatches")},
		{MethodName: "Snapshot", Handler: observerUnaryHandler(ObserverServer.Snapshot, "Snapshot")},
		{MethodName: "Dispatch", Handler: observerUnaryHandler(ObserverServer.Dispatch, "Dispatch")},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: observerWatchHandler, ServerStreams: true},
	},
	Metadata: "conquest/v1/observer.proto",
}

// GRPCOptions configure NewGRPCServer
type GRPCOptions struct {
	EnableReflection bool
	Tracing          bool
}

// NewGRPCServer builds a gRPC server exposing the observer and health services
func NewGRPCServer(svc *ObserverService, opts GRPCOptions, logger zerolog.Logger) (*grpc.Server, *health.Server) {
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			loggingInterceptor(logger),
			recoveryInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			streamLoggingInterceptor(logger),
			streamRecoveryInterceptor(logger),
		),
	}
	if opts.Tracing {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}

	grpcServer := grpc.NewServer(serverOpts...)
	grpcServer.RegisterService(&ObserverServiceDesc, svc)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ObserverServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if opts.EnableReflection {
		reflection.Register(grpcServer)
	}
	return grpcServer, healthServer
}
