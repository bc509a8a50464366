package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestRegistryCheck(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	r.Register("database", DBChecker(fakePinger{}))
	r.Register("redis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	st := r.Check(context.Background())
	assert.False(t, st.Healthy)
	assert.Equal(t, "ok", st.Checks["database"])
	assert.Equal(t, context.DeadlineExceeded.Error(), st.Checks["redis"])
	assert.Equal(t, []string{"database", "redis"}, r.Names())

	r.Register("redis", DBChecker(fakePinger{}))
	assert.True(t, r.Check(context.Background()).Healthy)
	assert.Error(t, DBChecker(nil)(context.Background()))
	assert.Error(t, KafkaChecker(nil, "demaxmin.solutions", nil)(context.Background()))
}

func TestGRPCHealthServer(t *testing.T) {
	r := NewRegistry(time.Second)
	s := NewGRPCHealthServer("demaxmin", r)
	ctx := context.Background()

	resp, err := s.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "demaxmin"})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	r.Register("database", DBChecker(fakePinger{err: errors.New("down")}))
	resp, err = s.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)

	_, err = s.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "other"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	list, err := s.List(ctx, &grpc_health_v1.HealthListRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Statuses, 2)
}
