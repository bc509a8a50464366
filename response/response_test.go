package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/demaxmin/contextx"
	"github.com/wyfcoding/demaxmin/xerrors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request = req.WithContext(contextx.WithRequestID(req.Context(), "req-9"))
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Body {
	t.Helper()
	var b Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b
}

func TestSuccess(t *testing.T) {
	c, w := newContext()
	Success(c, map[string]int{"z": 170})

	assert.Equal(t, http.StatusOK, w.Code)
	b := decode(t, w)
	assert.Equal(t, 0, b.Code)
	assert.Equal(t, "req-9", b.RequestID)
	assert.Equal(t, map[string]any{"z": float64(170)}, b.Data)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"business", xerrors.ErrSessionNotFound.WithContext("id", "PRB1"), http.StatusNotFound, 404101},
		{"wrapped business", errors.Join(errors.New("ctx"), xerrors.ErrProblemInvalid), http.StatusBadRequest, 400101},
		{"grpc", status.Error(codes.Unavailable, "down"), http.StatusServiceUnavailable, http.StatusServiceUnavailable},
		{"plain", errors.New("boom"), http.StatusInternalServerError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext()
			Error(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Code)
			assert.True(t, c.IsAborted())
		})
	}
}

func TestErrorHidesPlainMessage(t *testing.T) {
	c, w := newContext()
	Error(c, errors.New("dsn=secret"))
	assert.NotContains(t, w.Body.String(), "secret")
}
