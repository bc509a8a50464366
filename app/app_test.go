package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/server"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeServer struct {
	err     error
	stopped atomic.Bool
}

func (f *fakeServer) Start(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	f.stopped.Store(true)
	return nil
}

func (f *fakeServer) Stop(context.Context) error { return nil }

func TestLifecycleOrder(t *testing.T) {
	var order []string
	l := NewLifecycle(discard)
	for _, name := range []string{"a", "b"} {
		l.Append(Hook{
			Name:    name,
			OnStart: func(context.Context) error { order = append(order, "start "+name); return nil },
			OnStop:  func(context.Context) error { order = append(order, "stop "+name); return nil },
		})
	}

	require.NoError(t, l.Start(context.Background()))
	require.NoError(t, l.Stop(context.Background()))
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, order)
}

func TestLifecycleRollsBackOnStartFailure(t *testing.T) {
	var stopped []string
	l := NewLifecycle(discard)
	l.Append(Hook{Name: "a", OnStop: func(context.Context) error { stopped = append(stopped, "a"); return nil }})
	l.Append(Hook{Name: "b", OnStart: func(context.Context) error { return errors.New("boom") }})

	require.Error(t, l.Start(context.Background()))
	assert.Equal(t, []string{"a"}, stopped)
}

func TestRunContextStopsOnCancel(t *testing.T) {
	srv := &fakeServer{}
	var cleaned atomic.Int32
	a := New("test", discard, WithServer(srv), WithCleanup(func() { cleaned.Add(1) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunContext(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, srv.stopped.Load())
	assert.Equal(t, int32(1), cleaned.Load())
}

func TestRunContextReturnsServerError(t *testing.T) {
	failing := &fakeServer{err: errors.New("bind failed")}
	healthy := &fakeServer{}
	a := New("test", discard, WithServer(failing, healthy))

	err := a.RunContext(context.Background())
	require.Error(t, err)
	assert.True(t, healthy.stopped.Load())
}

func TestBuilderEngineServesHealthAndMetrics(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	cfg.Server.Environment = "test"

	var engine *gin.Engine
	b := NewBuilder[string]("demaxmin", cfg).
		WithService(func(rt *Runtime) (string, func(), error) {
			rt.Health.Register("database", func(context.Context) error { return errors.New("down") })
			return "svc", func() {}, nil
		}).
		WithGin(func(e *gin.Engine, svc string) {
			engine = e
			e.GET("/svc", func(c *gin.Context) { c.String(http.StatusOK, svc) })
		})

	_, err = b.Build()
	require.NoError(t, err)
	require.NotNil(t, engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sys/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"down"`)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/svc", nil))
	assert.Equal(t, "svc", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "build_info")
}

func TestBuilderAppliesShutdownTimeout(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	cfg.Server.Environment = "test"
	noop := func(*Runtime) (string, func(), error) { return "svc", func() {}, nil }

	a, err := NewBuilder[string]("demaxmin", cfg).WithService(noop).Build()
	require.NoError(t, err)
	assert.Equal(t, server.DefaultShutdownTimeout, a.opts.shutdownTimeout)

	cfg.Server.ShutdownTimeout = 3 * time.Second
	a, err = NewBuilder[string]("demaxmin", cfg).WithService(noop).Build()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, a.opts.shutdownTimeout)
}

func TestBuilderRequiresService(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	_, err = NewBuilder[string]("demaxmin", cfg).Build()
	assert.Error(t, err)
}
