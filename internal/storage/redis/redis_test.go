//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/resto-client/internal/storage"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, ctr)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	s, err := Open(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "tab-1")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, storage.KeyOrderID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, storage.KeyOrderID, []byte(`"o-42"`)))
	got, err := s.Get(ctx, storage.KeyOrderID)
	require.NoError(t, err)
	assert.Equal(t, `"o-42"`, string(got))

	require.NoError(t, s.Delete(ctx, storage.KeyOrderID))
	_, err = s.Get(ctx, storage.KeyOrderID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
