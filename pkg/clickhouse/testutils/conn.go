package testutils

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/mock"
)

// MockConn is a testify mock of driver.Conn. Query arguments are passed to
// Called after the context and query string.
type MockConn struct {
	mock.Mock
}

var _ driver.Conn = (*MockConn)(nil)

func (m *MockConn) called(ctx context.Context, query string, args []any) mock.Arguments {
	return m.Called(append([]any{ctx, query}, args...)...)
}

func (m *MockConn) Contributors() []string {
	return m.Called().Get(0).([]string)
}

func (m *MockConn) ServerVersion() (*driver.ServerVersion, error) {
	res := m.Called()
	v, _ := res.Get(0).(*driver.ServerVersion)
	return v, res.Error(1)
}

func (m *MockConn) Select(ctx context.Context, _ any, query string, args ...any) error {
	return m.called(ctx, query, args).Error(0)
}

func (m *MockConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	res := m.called(ctx, query, args)
	rows, _ := res.Get(0).(driver.Rows)
	return rows, res.Error(1)
}

func (m *MockConn) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	row, _ := m.called(ctx, query, args).Get(0).(driver.Row)
	return row
}

func (m *MockConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	args := make([]any, len(opts))
	for i, o := range opts {
		args[i] = o
	}
	res := m.called(ctx, query, args)
	batch, _ := res.Get(0).(driver.Batch)
	return batch, res.Error(1)
}

func (m *MockConn) Exec(ctx context.Context, query string, args ...any) error {
	return m.called(ctx, query, args).Error(0)
}

func (m *MockConn) AsyncInsert(ctx context.Context, query string, wait bool, args ...any) error {
	return m.Called(append([]any{ctx, query, wait}, args...)...).Error(0)
}

func (m *MockConn) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConn) Stats() driver.Stats {
	s, _ := m.Called().Get(0).(driver.Stats)
	return s
}

func (m *MockConn) Close() error {
	return m.Called().Error(0)
}
