package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventGuard_ClaimOnce(t *testing.T) {
	_, client := newTestClient(t)
	guard := NewEventGuard(client)
	ctx := context.Background()

	first, err := guard.Claim(ctx, "charge.success:RB-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := guard.Claim(ctx, "charge.success:RB-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second, "duplicate delivery must not be claimed again")

	other, err := guard.Claim(ctx, "charge.success:RB-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestEventGuard_ReleaseAllowsRetry(t *testing.T) {
	_, client := newTestClient(t)
	guard := NewEventGuard(client)
	ctx := context.Background()

	_, err := guard.Claim(ctx, "charge.success:RB-1", time.Hour)
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, "charge.success:RB-1"))

	again, err := guard.Claim(ctx, "charge.success:RB-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestEventGuard_ClaimExpires(t *testing.T) {
	mr, client := newTestClient(t)
	guard := NewEventGuard(client)
	ctx := context.Background()

	_, err := guard.Claim(ctx, "charge.success:RB-1", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	again, err := guard.Claim(ctx, "charge.success:RB-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}
