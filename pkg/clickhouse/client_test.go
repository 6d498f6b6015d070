package clickhouse

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ava-labs/competition-indexer/pkg/clickhouse/testutils"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9000"}, cfg.Hosts)
	assert.Equal(t, "default", cfg.Cluster)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, "default", cfg.Username)
	assert.Empty(t, cfg.Password)
	assert.False(t, cfg.Debug)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 60, cfg.MaxExecutionTime)
	assert.Equal(t, 1000, cfg.MaxBlockSize)
	assert.Equal(t, "competition-indexer", cfg.ClientName)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOSTS", "ch-1:9000,ch-2:9000")
	t.Setenv("CLICKHOUSE_CLUSTER", "indexer")
	t.Setenv("CLICKHOUSE_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ch-1:9000", "ch-2:9000"}, cfg.Hosts)
	assert.Equal(t, "indexer", cfg.Cluster)
	assert.True(t, cfg.Debug)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("CLICKHOUSE_MAX_OPEN_CONNS", "many")

	_, err := Load()
	require.ErrorContains(t, err, "failed to parse clickhouse config")
}

func TestNew_InvalidPort(t *testing.T) {
	t.Parallel()

	for _, debug := range []bool{false, true} {
		cfg := Config{
			Hosts:       []string{"invalid:99999"},
			Database:    "test",
			Username:    "test",
			Debug:       debug,
			DialTimeout: 1,
		}

		client, err := New(cfg, zap.NewNop().Sugar())

		var addrErr *net.AddrError
		require.ErrorAs(t, err, &addrErr)
		assert.Equal(t, "invalid port", addrErr.Err)
		assert.Nil(t, client)
	}
}

func TestTestClient_DelegatesToConn(t *testing.T) {
	t.Parallel()

	mockConn := &testutils.MockConn{}
	pingErr := errors.New("ping failed")
	mockConn.On("Ping", t.Context()).Return(pingErr)
	mockConn.On("Close").Return(nil)

	var c Client = testutils.NewTestClient(mockConn)
	assert.Same(t, mockConn, c.Conn())
	require.ErrorIs(t, c.Ping(t.Context()), pingErr)
	require.NoError(t, c.Close())
	mockConn.AssertExpectations(t)
}
