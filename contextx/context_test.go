package contextx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Equal(t, "0.0.0.0", GetIP(ctx))
	assert.Equal(t, "Unknown", GetUserAgent(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSessionID(ctx, "PRB42")
	ctx = WithIP(ctx, "10.0.0.1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "PRB42", GetSessionID(ctx))
	assert.Equal(t, []any{"request_id", "req-1", "session_id", "PRB42", "client_ip", "10.0.0.1"}, Fields(ctx))
}
