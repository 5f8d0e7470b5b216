package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/constants"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelFor(t *testing.T) {
	tests := []struct {
		name    string
		pool    string
		kind    string
		channel string
		pattern bool
		wantErr bool
	}{
		{name: "all pools", channel: constants.PubSubPatternPoolChannel, pattern: true},
		{name: "one pool", pool: "SOL-USDC", channel: constants.PubSubChannelPoolPrefix + "SOL-USDC"},
		{name: "one kind", kind: "swap", channel: constants.PubSubChannelKindPrefix + "swap"},
		{name: "unknown kind", kind: "trade", wantErr: true},
		{name: "both filters", pool: "SOL-USDC", kind: "swap", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel, pattern, err := channelFor(tt.pool, tt.kind)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.channel, channel)
			assert.Equal(t, tt.pattern, pattern)
		})
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.ParseFlags([]string{"--pool", "SOL-USDC"}))
	pool, err := cmd.Flags().GetString("pool")
	require.NoError(t, err)
	assert.Equal(t, "SOL-USDC", pool)

	// Mutually exclusive filters are rejected before connecting
	cmd = newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--pool", "SOL-USDC", "--kind", "swap"})
	assert.Error(t, cmd.Execute())

	cmd = newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--kind", "trade"})
	assert.ErrorContains(t, cmd.Execute(), "unknown event kind")
}

func TestEventEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	eventEntry(logger, &models.PoolEvent{
		ID:        "evt",
		Pool:      "SOL-USDC",
		Kind:      models.EventSwap,
		Token:     "A",
		AmountIn:  fixedpoint.NewAmount(100_000_000),
		AmountOut: fixedpoint.NewAmount(90_661_089),
	}).Info("evt")

	out := buf.String()
	assert.Contains(t, out, `"amount_out":"90661089"`)
	assert.Contains(t, out, `"token":"A"`)
	assert.NotContains(t, out, "depositor")
}
