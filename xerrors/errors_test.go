package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestDerivedErrorsMatchSentinel(t *testing.T) {
	cause := errors.New("redis: connection refused")
	err := ErrSessionNotFound.WithContext("problem_id", "P1").WithCause(cause)

	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSolutionNotFound)
	assert.Empty(t, ErrSessionNotFound.Context, "sentinel must not be mutated")
	assert.Nil(t, ErrSessionNotFound.Cause)
}

func TestWrapKeepsCode(t *testing.T) {
	inner := ErrDimensionOutOfRange.WithDetail("origins: %d", 16)
	wrapped := fmt.Errorf("configure: %w", inner)

	e := Wrap(wrapped, ErrInternal, "configure failed")
	require.NotNil(t, e)
	assert.Equal(t, 400102, e.Code)
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())
	assert.ErrorIs(t, e, ErrDimensionOutOfRange)

	plain := WrapInternal(errors.New("boom"), "unexpected")
	assert.Equal(t, http.StatusInternalServerError, plain.HTTPStatus())
	assert.Nil(t, Wrap(nil, ErrInternal, "noop"))
}

func TestProtocolMapping(t *testing.T) {
	tests := []struct {
		err  *Error
		http int
		grpc codes.Code
	}{
		{ErrProblemInvalid, http.StatusBadRequest, codes.InvalidArgument},
		{ErrSessionNotFound, http.StatusNotFound, codes.NotFound},
		{ErrMalformedCell, http.StatusInternalServerError, codes.Internal},
		{ErrDependencyUnavailable, http.StatusServiceUnavailable, codes.Unavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.http, tt.err.HTTPStatus(), tt.err.Message)
		assert.Equal(t, tt.grpc, tt.err.GRPCCode(), tt.err.Message)
		assert.Equal(t, tt.grpc, tt.err.ToGRPCStatus().Code())
	}
}

func TestFromErrorWalksChain(t *testing.T) {
	_, ok := FromError(errors.New("plain"))
	assert.False(t, ok)

	e, ok := FromError(fmt.Errorf("outer: %w", ErrLabelInvalid))
	require.True(t, ok)
	assert.Equal(t, 400103, e.Code)
}
