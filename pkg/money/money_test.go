package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"250", 25000},
		{"85.5", 8550},
		{"0.015", 2},
		{"199.99", 19999},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToCents(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFromCentsAndFormat(t *testing.T) {
	assert.True(t, FromCents(25050).Equal(decimal.RequireFromString("250.50")))
	assert.Equal(t, "R250.50", Format(25050))
	assert.Equal(t, "R0.00", Format(0))
}

func TestShare(t *testing.T) {
	got, err := Share(10000, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3333), got)

	got, err = Share(10000, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(6667), got)

	_, err = Share(100, 1, 0)
	assert.Error(t, err)
}

func TestWithin(t *testing.T) {
	assert.True(t, Within(100, 101, 1))
	assert.True(t, Within(101, 100, 1))
	assert.False(t, Within(100, 102, 1))
}
