package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMillify(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1K"},
		{1500, "1.5K"},
		{1234567, "1.23M"},
		{-2500, "-2.5K"},
		{3_000_000_000, "3B"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Millify(tt.n, 2), "Millify(%d)", tt.n)
	}
	assert.Equal(t, "1.5K", Millify(1500, -1))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0s", FormatUptime(0))
	assert.Equal(t, "0s", FormatUptime(-time.Minute))
	assert.Equal(t, "42s", FormatUptime(42*time.Second+300*time.Millisecond))
	assert.Equal(t, "5m07s", FormatUptime(5*time.Minute+7*time.Second))
	assert.Equal(t, "1h02m", FormatUptime(time.Hour+2*time.Minute+59*time.Second))
	assert.Equal(t, "26h00m", FormatUptime(26*time.Hour))
}
