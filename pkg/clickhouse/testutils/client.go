// Package testutils provides an in-memory ClickHouse client for unit tests of
// packages that talk to ClickHouse.
package testutils

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// NewTestClient returns a client backed by conn. It satisfies
// clickhouse.Client.
func NewTestClient(conn driver.Conn) *TestClient {
	return &TestClient{conn: conn}
}

type TestClient struct {
	conn driver.Conn
}

func (c *TestClient) Conn() driver.Conn {
	return c.conn
}

func (c *TestClient) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *TestClient) Close() error {
	return c.conn.Close()
}
