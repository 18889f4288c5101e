package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_ClaimSetsMarkerOnlyIfAbsent(t *testing.T) {
	client, recorder := recordedRedisClient(t)
	store := NewIdempotencyStore(client)

	claimed, err := store.Claim(context.Background(), "tenant-a", "key-1", 2*time.Minute)

	assert.ErrorIs(t, err, errRedisOffline)
	assert.False(t, claimed)
	require.Equal(t, []string{"set"}, recorder.commands)
	assert.Equal(t, []interface{}{
		"set", BuildIdempotencyKey("tenant-a", "key-1"), claimMarker, "ex", int64(120), "nx",
	}, recorder.args[0])
}

func TestIdempotencyStore_ReleaseOnlyDropsMarker(t *testing.T) {
	client, recorder := recordedRedisClient(t)
	store := NewIdempotencyStore(client)

	err := store.Release(context.Background(), "tenant-a", "key-1")

	assert.ErrorIs(t, err, errRedisOffline)
	require.Equal(t, []string{"evalsha"}, recorder.commands)
	args := recorder.args[0]
	require.Len(t, args, 5)
	assert.Equal(t, BuildIdempotencyKey("tenant-a", "key-1"), args[3])
	assert.Equal(t, claimMarker, args[4])
}

func TestIdempotencyStore_RememberOverwritesClaim(t *testing.T) {
	client, recorder := recordedRedisClient(t)
	store := NewIdempotencyStore(client)

	err := store.Remember(context.Background(), "tenant-a", "key-1", &StoredResponse{StatusCode: 201}, time.Hour)

	assert.ErrorIs(t, err, errRedisOffline)
	require.Equal(t, []string{"set"}, recorder.commands)
	args := recorder.args[0]
	require.Len(t, args, 5)
	assert.Equal(t, "ex", args[3])
	assert.NotContains(t, args, "nx")
}

func TestDecodeStoredResponse(t *testing.T) {
	stored, err := decodeStoredResponse(claimMarker)
	require.NoError(t, err)
	assert.Nil(t, stored, "a claimed key has nothing to replay")

	raw, err := json.Marshal(&StoredResponse{StatusCode: 201, Data: json.RawMessage(`{"id":"doc-1"}`), Cached: true})
	require.NoError(t, err)
	stored, err = decodeStoredResponse(string(raw))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 201, stored.StatusCode)
	assert.True(t, stored.Cached)
	assert.JSONEq(t, `{"id":"doc-1"}`, string(stored.Data))

	_, err = decodeStoredResponse("not json")
	assert.Error(t, err)
}
