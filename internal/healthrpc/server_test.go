package healthrpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakeDB struct {
	fail atomic.Bool
}

func (f *fakeDB) Ping(context.Context) error {
	if f.fail.Load() {
		return errors.New("database is closed")
	}
	return nil
}

func startServer(t *testing.T, db Pinger, chatEnabled bool) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := New(db, chatEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis, time.Hour) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("gRPC server did not stop")
		}
	})
	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_ChatEnabled(t *testing.T) {
	_, client := startServer(t, &fakeDB{}, true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ChatService))
}

func TestHealth_ChatDisabled(t *testing.T) {
	_, client := startServer(t, &fakeDB{}, false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ChatService))
}

func TestHealth_DatabaseDown(t *testing.T) {
	db := &fakeDB{}
	srv, client := startServer(t, db, true)

	db.fail.Store(true)
	srv.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))

	db.fail.Store(false)
	srv.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
}
