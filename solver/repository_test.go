package solver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wyfcoding/demaxmin/xerrors"
)

var errConnPool = errors.New("scripted statement failure")

// scriptedConn 是只记录语句的 gorm.ConnPool，以 failOn 开头的语句返回错误。
type scriptedConn struct {
	mu        sync.Mutex
	failOn    string
	execs     []string
	begins    int
	commits   int
	rollbacks int
}

func (c *scriptedConn) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, errConnPool
}

func (c *scriptedConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	if c.failOn != "" && strings.HasPrefix(query, c.failOn) {
		return nil, errConnPool
	}
	return driver.RowsAffected(2), nil
}

func (c *scriptedConn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errConnPool
}

func (c *scriptedConn) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (c *scriptedConn) BeginTx(context.Context, *sql.TxOptions) (gorm.ConnPool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begins++
	return &scriptedTx{conn: c}, nil
}

// scriptedTx 与 *sql.Tx 一样不支持再次开启事务。
type scriptedTx struct {
	conn *scriptedConn
}

func (t *scriptedTx) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return t.conn.PrepareContext(ctx, query)
}

func (t *scriptedTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

func (t *scriptedTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.conn.QueryContext(ctx, query, args...)
}

func (t *scriptedTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.conn.QueryRowContext(ctx, query, args...)
}

func (t *scriptedTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.commits++
	return nil
}

func (t *scriptedTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.rollbacks++
	return nil
}

func newScriptedRepository(t *testing.T, failOn string) (*GormSolutionRepository, *scriptedConn) {
	t.Helper()
	conn := &scriptedConn{failOn: failOn}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	return NewGormSolutionRepository(db, nil), conn
}

func TestPurgeBeforeCommitsBothDeletes(t *testing.T) {
	repo, conn := newScriptedRepository(t, "")

	n, err := repo.PurgeBefore(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, conn.execs, 2)
	assert.True(t, strings.HasPrefix(conn.execs[0], `DELETE FROM "assignment_records"`))
	assert.Contains(t, conn.execs[0], `IN (SELECT`)
	assert.True(t, strings.HasPrefix(conn.execs[1], `DELETE FROM "solution_records"`))
	assert.Equal(t, 1, conn.begins)
	assert.Equal(t, 1, conn.commits)
	assert.Zero(t, conn.rollbacks)
}

func TestPurgeBeforeRollsBackWhenSolutionDeleteFails(t *testing.T) {
	repo, conn := newScriptedRepository(t, `DELETE FROM "solution_records"`)

	n, err := repo.PurgeBefore(context.Background(), time.Now())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, xerrors.ErrDependencyUnavailable)
	assert.ErrorIs(t, err, errConnPool)

	// 分配记录的删除已执行，但与求解记录的删除同属一个被回滚的事务。
	require.Len(t, conn.execs, 2)
	assert.Equal(t, 1, conn.begins)
	assert.Zero(t, conn.commits)
	assert.Equal(t, 1, conn.rollbacks)
}
