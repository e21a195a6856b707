package server

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/netsync"
	"github.com/mitchelldurbincs/conquest/internal/testutil"
)

func newTestObserverClient(t *testing.T, rm *RoomManager) (*ObserverClient, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(NewObserverService(rm, testutil.NopLogger()), GRPCOptions{}, testutil.NopLogger())
	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
	})
	return NewObserverClient(conn), conn
}

func TestObserverService_CreateAndList(t *testing.T) {
	rm := newTestManager(t, testManagerConfig())
	client, _ := newTestObserverClient(t, rm)
	ctx := context.Background()

	info, err := client.CreateMatch(ctx, CreateRoomRequest{MatchID: "grpc-a", Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, "grpc-a", info.ID)

	matches, err := client.ListMatches(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "grpc-a", matches[0].ID)
}

func TestObserverService_SnapshotAndDispatch(t *testing.T) {
	rm := newTestManager(t, testManagerConfig())
	client, _ := newTestObserverClient(t, rm)
	ctx := context.Background()

	_, err := rm.CreateRoom(CreateRoomRequest{MatchID: "grpc-duel", Territories: testutil.CreateDuelSetup()})
	require.NoError(t, err)

	snap, err := client.Snapshot(ctx, "grpc-duel")
	require.NoError(t, err)
	require.Len(t, snap.Territories, 3)
	assert.Equal(t, core.NewVec2(200, 0), snap.Territories[1].Position)

	troop, err := client.Dispatch(ctx, DispatchRequest{
		MatchID:   "grpc-duel",
		RequestID: "r1",
		Command:   core.DispatchAll(testutil.Player, 0, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 9, troop.Count)
	assert.Equal(t, core.TerritoryID(1), troop.Target)
}

func TestObserverService_ErrorCodes(t *testing.T) {
	rm := newTestManager(t, testManagerConfig())
	client, _ := newTestObserverClient(t, rm)
	ctx := context.Background()

	_, err := rm.CreateRoom(CreateRoomRequest{MatchID: "codes", Territories: testutil.CreateDuelSetup()})
	require.NoError(t, err)

	_, err = client.Snapshot(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Dispatch(ctx, DispatchRequest{
		MatchID: "codes",
		Command: core.DispatchAll(testutil.Player, 2, 1),
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.CreateMatch(ctx, CreateRoomRequest{Difficulty: "impossible"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestObserverService_Watch_SnapshotThenDeltas(t *testing.T) {
	rm := newTestManager(t, testManagerConfig())
	client, _ := newTestObserverClient(t, rm)
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	room, err := rm.CreateRoom(CreateRoomRequest{MatchID: "watch", Territories: testutil.CreateDuelSetup()})
	require.NoError(t, err)

	stream, err := client.Watch(ctx, MatchRequest{MatchID: "watch", ObserverID: "w1"})
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, netsync.KindSnapshot, first.Kind)
	require.NotNil(t, first.Snapshot)

	replica := netsync.NewReplica(first.Snapshot, testutil.NopLogger())

	_, err = room.Dispatch(ctx, core.DispatchAll(testutil.Player, 0, 1), "")
	require.NoError(t, err)
	require.NoError(t, room.Surrender(ctx))

	var sawDispatch bool
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.NoError(t, replica.Apply(msg))
		if msg.Kind == netsync.KindDispatch {
			sawDispatch = true
		}
	}

	assert.True(t, sawDispatch)
	assert.Equal(t, "Ended", replica.Phase())
	terr, ok := replica.Territory(0)
	require.True(t, ok)
	assert.Equal(t, 1, terr.Garrison)
}

func TestObserverService_Health(t *testing.T) {
	rm := newTestManager(t, testManagerConfig())
	_, conn := newTestObserverClient(t, rm)

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: ObserverServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
