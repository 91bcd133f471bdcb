package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"main/internal/model"
	"main/pkg/exception"

	"github.com/stretchr/testify/require"
)

func TestParseLadderFromStreamPayload(t *testing.T) {
	raw := `{
		"lastUpdateId": 160,
		"bids": [["43250.50", "1.2"], ["43250.00", "0.4"]],
		"asks": [["43251.00", "0.7"], ["43251.50", "2.0"]]
	}`

	var payload depthPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	bids, err := parseLadder(payload.Bids)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, model.Price(43_250_500_000), bids[0].Price)
	require.Equal(t, model.Quantity(1_200_000), bids[0].Amount)
	require.Equal(t, model.Quantity(1_200_000), bids[0].Total)
	require.Equal(t, model.Quantity(1_600_000), bids[1].Total)

	asks, err := parseLadder(payload.Asks)
	require.NoError(t, err)
	require.Equal(t, model.Price(43_251_000_000), asks[0].Price)
	require.Equal(t, model.Quantity(2_700_000), asks[1].Total)
}

func TestExternalConfigValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewExternal(ctx, ExternalConfig{Symbol: "BTC/USDT", StaleAfter: time.Second})
	require.Equal(t, exception.ErrConfigInvalid, err)

	_, err = NewExternal(ctx, ExternalConfig{URL: "wss://example/ws", StaleAfter: time.Second})
	require.Equal(t, exception.ErrConfigInvalid, err)

	_, err = NewExternal(ctx, ExternalConfig{URL: "wss://example/ws", Symbol: "BTC/USDT"})
	require.Equal(t, exception.ErrConfigInvalid, err)
}

func TestExternalServesStaleUntilDataArrives(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ext, err := NewExternal(ctx, ExternalConfig{
		URL:        "wss://example/ws",
		Symbol:     "BTC/USDT",
		StaleAfter: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	// nothing received yet
	tick, _, _, _ := ext.Next(time.Now())
	require.True(t, tick.Stale)
	require.Error(t, ext.Healthy(time.Now()))

	var payload depthPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"lastUpdateId": 1,
		"bids": [["100.00", "1.0"]],
		"asks": [["101.00", "1.0"]]
	}`), &payload))
	ext.applyDepth(payload)

	tick, bids, asks, _ := ext.Next(time.Now())
	require.False(t, tick.Stale)
	require.Equal(t, model.Price(100_000_000), tick.Bid)
	require.Equal(t, model.Price(101_000_000), tick.Ask)
	require.Equal(t, model.Price(100_500_000), tick.Price)
	require.NotEmpty(t, bids)
	require.NotEmpty(t, asks)
	require.NoError(t, ext.Healthy(time.Now()))

	// stream goes silent: last book keeps serving, flagged stale
	later := time.Now().Add(time.Second)
	tick, bids, _, _ = ext.Next(later)
	require.True(t, tick.Stale)
	require.Equal(t, model.Price(100_000_000), tick.Bid)
	require.NotEmpty(t, bids)
	require.ErrorIs(t, ext.Healthy(later), exception.ErrFeedUnavailable)
}

func TestExternalSequenceIncreases(t *testing.T) {
	ctx := context.Background()
	ext, err := NewExternal(ctx, ExternalConfig{
		URL:        "wss://example/ws",
		Symbol:     "BTC/USDT",
		StaleAfter: time.Second,
	})
	require.NoError(t, err)

	now := time.Now()
	var last uint64
	for i := 0; i < 5; i++ {
		tick, _, _, _ := ext.Next(now)
		require.Greater(t, tick.Seq, last)
		last = tick.Seq
	}
}
