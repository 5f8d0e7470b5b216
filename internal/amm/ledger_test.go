package amm

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiquidityLedger_Lifecycle(t *testing.T) {
	l := NewLiquidityLedger()
	alice := solana.NewWallet().PublicKey()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Deposit before initialization
	_, err := l.Deposit(alice, amt(10), now)
	assert.ErrorIs(t, err, ErrPositionNotFound)

	pos, err := l.InitializePosition(alice, now)
	require.NoError(t, err)
	assert.True(t, pos.StakedAmount.IsZero())

	_, err = l.InitializePosition(alice, now)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	pos, err = l.Deposit(alice, amt(100), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "100", pos.StakedAmount.String())
	assert.Equal(t, now.Add(time.Minute), pos.UpdatedAt)
	assert.Equal(t, "100", l.TotalStake().String())

	// Cannot withdraw more than staked
	_, err = l.Withdraw(alice, amt(101))
	assert.ErrorIs(t, err, ErrInsufficientStake)

	pos, err = l.Withdraw(alice, amt(100))
	require.NoError(t, err)
	assert.True(t, pos.StakedAmount.IsZero())
	assert.Equal(t, now.Add(time.Minute), pos.UpdatedAt)

	// Zero stake positions are kept
	got, ok := l.Position(alice)
	assert.True(t, ok)
	assert.True(t, got.StakedAmount.IsZero())
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.TotalStake().IsZero())
}

func TestLiquidityLedger_WithdrawUnknown(t *testing.T) {
	l := NewLiquidityLedger()
	_, err := l.Withdraw(solana.NewWallet().PublicKey(), amt(1))
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestLiquidityLedger_TotalTracksPositions(t *testing.T) {
	l := NewLiquidityLedger()
	now := time.Now()

	var keys []solana.PublicKey
	for i := 0; i < 5; i++ {
		k := solana.NewWallet().PublicKey()
		keys = append(keys, k)
		_, err := l.InitializePosition(k, now)
		require.NoError(t, err)
		_, err = l.Deposit(k, amt(uint64(i+1)*10), now)
		require.NoError(t, err)
	}
	assert.Equal(t, "150", l.TotalStake().String())

	_, err := l.Withdraw(keys[2], amt(5))
	require.NoError(t, err)
	assert.Equal(t, "145", l.TotalStake().String())

	positions := l.Positions()
	require.Len(t, positions, 5)

	restored := NewLiquidityLedger()
	require.NoError(t, restored.restore(positions))
	assert.Equal(t, l.TotalStake(), restored.TotalStake())
}
