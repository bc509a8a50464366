package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wyfcoding/demaxmin/config"
)

var _ Server = (*GinServer)(nil)
var _ Server = (*GRPCServer)(nil)

func TestGinServerServesAndStops(t *testing.T) {
	engine := NewDefaultGinEngine(gin.TestMode)
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewGinServer(engine, lis.Addr().String(), time.Second, time.Second, slog.Default(), Options{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	resp, err := http.Get("http://" + lis.Addr().String() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("gin server did not stop")
	}
}

func TestGRPCServerServesHealth(t *testing.T) {
	hs := health.NewServer()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewGRPCServer(lis.Addr().String(), slog.Default(), func(s *grpc.Server) {
		healthpb.RegisterHealthServer(s, hs)
	}, nil, KeepaliveOptions(config.GRPCKeepaliveConfig{Enabled: true, Time: time.Minute, Timeout: time.Second}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("grpc server did not stop")
	}
}

func TestGinMode(t *testing.T) {
	assert.Equal(t, gin.ReleaseMode, GinMode("prod"))
	assert.Equal(t, gin.TestMode, GinMode("test"))
	assert.Equal(t, gin.DebugMode, GinMode("dev"))
	assert.Nil(t, KeepaliveOptions(config.GRPCKeepaliveConfig{}))
}
