package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/xerrors"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres"} {
		d, err := Dialector(driver, "dsn")
		require.NoError(t, err)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector("clickhouse", "dsn")
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := NewDB(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"}, config.CircuitBreakerConfig{}, logging.Default(), nil)
	require.Error(t, err)

	xe, ok := xerrors.FromError(err)
	require.True(t, ok)
	assert.Equal(t, 400, xe.HTTPStatus())
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
