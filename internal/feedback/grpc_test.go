package feedback

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newBufconnClient(t *testing.T, hub *Hub) *FeedbackClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterFeedbackServiceServer(srv, NewGRPCService(hub))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewFeedbackClient(conn)
}

// waitClients polls until n clients are subscribed.
func waitClients(t *testing.T, hub *Hub, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Stats().Clients != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Stats().Clients, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGRPCStreamFeedback(t *testing.T) {
	hub := newTestHub(t, Config{ClientBuffer: 8})
	client := newBufconnClient(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.StreamFeedback(ctx, []string{EventFeedback})
	require.NoError(t, err)
	waitClients(t, hub, 1)

	hub.PublishTolerance(2) // filtered out
	hub.Publish(feedbackWithAvg(7, 0.02))

	msg, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, EventFeedback, msg.GetFields()["type"].GetStringValue())
	fb := msg.GetFields()["feedback"].GetStructValue()
	require.NotNil(t, fb)
	assert.Equal(t, 7.0, fb.GetFields()["seq"].GetNumberValue())
	assert.Equal(t, "GOOD", fb.GetFields()["verdict"].GetStringValue())

	cancel()
	waitClients(t, hub, 0)
}

func TestGRPCTooManyClients(t *testing.T) {
	hub := newTestHub(t, Config{MaxClients: 1})
	_, err := hub.Subscribe("local")
	require.NoError(t, err)

	client := newBufconnClient(t, hub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.StreamFeedback(ctx, nil)
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestEventToStruct(t *testing.T) {
	tol := 1.25
	s, err := EventToStruct(Event{Type: EventToleranceUpdated, Tolerance: &tol})
	require.NoError(t, err)
	assert.Equal(t, "tolerance_updated", s.GetFields()["type"].GetStringValue())
	assert.Equal(t, 1.25, s.GetFields()["tolerance"].GetNumberValue())
	_, hasFeedback := s.GetFields()["feedback"]
	assert.False(t, hasFeedback)
}

func TestGRPCServerLifecycle(t *testing.T) {
	hub := newTestHub(t, Config{})
	g := NewGRPCServer("127.0.0.1:0", NewGRPCService(hub))
	assert.Nil(t, g.Addr())

	require.NoError(t, g.Start())
	assert.NotNil(t, g.Addr())
	assert.Error(t, g.Start())
	g.Stop()
	g.Stop()
}

func TestGRPCStreamEndsWhenHubStops(t *testing.T) {
	hub := newTestHub(t, Config{})
	client := newBufconnClient(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.StreamFeedback(ctx, nil)
	require.NoError(t, err)
	waitClients(t, hub, 1)

	hub.Stop()
	_, err = stream.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
