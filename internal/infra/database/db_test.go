package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unreachableDSN = "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable connect_timeout=1"

func TestPool_Apply(t *testing.T) {
	db, err := sql.Open("postgres", unreachableDSN)
	require.NoError(t, err)
	defer db.Close()

	SearchPool.apply(db)

	assert.Equal(t, SearchPool.MaxOpen, db.Stats().MaxOpenConnections)
}

func TestNewPostgresConnection_PingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewPostgresConnection(ctx, unreachableDSN, MonitorPool)

	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}
