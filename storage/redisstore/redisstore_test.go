package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yaaesthetic/agno/state"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "agno:state:shopping", Key("shopping"))
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorContains(t, err, "address is required")
}

func TestStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("AGNO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AGNO_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()

	s, err := New(ctx, Config{Address: addr})
	require.NoError(t, err)
	defer s.Close()

	name := "test-" + uuid.NewString()
	defer s.DeleteState(ctx, name) //nolint:errcheck

	_, err = s.LoadState(ctx, name)
	assert.ErrorIs(t, err, state.ErrSnapshotNotFound)

	store := state.NewStore[string]()
	store.InitSession("u1", "s1")
	_, err = store.Add("u1", "s1", "milk")
	require.NoError(t, err)

	require.NoError(t, state.Save(ctx, s, name, store))

	restored := state.NewStore[string]()
	ok, err := state.Load(ctx, s, name, restored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, restored.Count("u1"))
}
