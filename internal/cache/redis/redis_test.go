package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Score  int    `json:"score"`
	Status string `json:"status"`
}

func TestResultStore_SetGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewResultStore(NewFromRedis(db, ""))
	ctx := context.Background()

	want := payload{Score: 82, Status: "HEALTHY"}
	data, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectSet("marketscore:result:health:0xabc", data, 30*time.Second).SetVal("OK")
	mock.ExpectGet("marketscore:result:health:0xabc").SetVal(string(data))

	require.NoError(t, store.Set(ctx, "health:0xabc", want, 30*time.Second))

	var got payload
	found, err := store.Get(ctx, "health:0xabc", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultStore_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewResultStore(NewFromRedis(db, "test:"))

	mock.ExpectGet("test:result:risk:ETH-USDT").RedisNil()

	var got payload
	found, err := store.Get(context.Background(), "risk:ETH-USDT", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultStore_GetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewResultStore(NewFromRedis(db, ""))

	mock.ExpectGet("marketscore:result:volume:x").SetErr(assert.AnError)

	_, err := store.Get(context.Background(), "volume:x", &payload{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSignalBus_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	bus := NewSignalBus(NewFromRedis(db, ""))

	mock.ExpectPublish("marketscore:live:orderbook", []byte(`{"kind":"orderbook"}`)).SetVal(1)

	err := bus.Publish(context.Background(), "live:orderbook", []byte(`{"kind":"orderbook"}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Allow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rl := NewRateLimiter(NewFromRedis(db, ""))
	rl.now = func() time.Time { return time.UnixMicro(5_000_000) }

	key := []string{"marketscore:ratelimit:10.0.0.1"}
	mock.ExpectEvalSha(rl.slidingWindow.Hash(), key, int64(5_000_000), int64(60_000_000), 2).
		SetVal([]interface{}{int64(1), int64(1)})
	mock.ExpectEvalSha(rl.slidingWindow.Hash(), key, int64(5_000_000), int64(60_000_000), 2).
		SetVal([]interface{}{int64(0), int64(2)})

	ok, err := rl.Allow(context.Background(), "10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.Allow(context.Background(), "10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
