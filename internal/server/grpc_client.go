package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/netsync"
)

// ObserverClient calls the observer service over a client connection
type ObserverClient struct {
	cc grpc.ClientConnInterface
}

// NewObserverClient wraps a connection
func NewObserverClient(cc grpc.ClientConnInterface) *ObserverClient {
	return &ObserverClient{cc: cc}
}

func (c *ObserverClient) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ObserverServiceName+"/"+method, in, out, opts...); err != nil {
		return err
	}
	return fromStruct(out, resp)
}

// CreateMatch starts a match on the server
func (c *ObserverClient) CreateMatch(ctx context.Context, req CreateRoomRequest, opts ...grpc.CallOption) (RoomInfo, error) {
	var info RoomInfo
	err := c.invoke(ctx, "CreateMatch", req, &info, opts...)
	return info, err
}

// ListMatches lists the matches on the server
func (c *ObserverClient) ListMatches(ctx context.Context, opts ...grpc.CallOption) ([]RoomInfo, error) {
	var list MatchList
	err := c.invoke(ctx, "ListMatches", struct{}{}, &list, opts...)
	return list.Matches, err
}

// Snapshot fetches the full state of a match
func (c *ObserverClient) Snapshot(ctx context.Context, matchID string, opts ...grpc.CallOption) (*netsync.Snapshot, error) {
	var snap netsync.Snapshot
	if err := c.invoke(ctx, "Snapshot", MatchRequest{MatchID: matchID}, &snap, opts...); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Dispatch sends a player command
func (c *ObserverClient) Dispatch(ctx context.Context, req DispatchRequest, opts ...grpc.CallOption) (core.Troop, error) {
	var resp DispatchResponse
	err := c.invoke(ctx, "Dispatch", req, &resp, opts...)
	return resp.Troop, err
}

// WatchStream receives the messages of one match
type WatchStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next message. It returns io.EOF once the match is over.
func (w *WatchStream) Recv() (netsync.Message, error) {
	out := new(structpb.Struct)
	if err := w.stream.RecvMsg(out); err != nil {
		return netsync.Message{}, err
	}
	var msg netsync.Message
	err := fromStruct(out, &msg)
	return msg, err
}

// Watch opens a watch stream. The first message is always a snapshot.
func (c *ObserverClient) Watch(ctx context.Context, req MatchRequest, opts ...grpc.CallOption) (*WatchStream, error) {
	desc := &ObserverServiceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, "/"+ObserverServiceName+"/Watch", opts...)
	if err != nil {
		return nil, err
	}
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, fmt.Errorf("send watch request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close watch request: %w", err)
	}
	return &WatchStream{stream: stream}, nil
}
