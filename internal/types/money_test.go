package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundExternal(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		expected string
	}{
		{name: "round_up", amount: "10.278", expected: "10.28"},
		{name: "round_down", amount: "10.271", expected: "10.27"},
		{name: "round_half_up", amount: "10.275", expected: "10.28"},
		{name: "sub_cent_down", amount: "0.004", expected: "0.00"},
		{name: "sub_cent_up", amount: "0.005", expected: "0.01"},
		{name: "already_external", amount: "45.00", expected: "45.00"},
		{name: "negative", amount: "-1.005", expected: "-1.01"},
		{name: "zero", amount: "0", expected: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundExternal(decimal.RequireFromString(tt.amount))
			expected := decimal.RequireFromString(tt.expected)
			assert.True(t, got.Equal(expected),
				"expected %s, got %s", expected.String(), got.String())
		})
	}
}

func TestRoundIntermediate(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		expected string
	}{
		{name: "keeps_four_decimals", amount: "33.33335", expected: "33.3334"},
		{name: "truncating_case", amount: "10.00004", expected: "10.0000"},
		{name: "blended_price", amount: "16.666666", expected: "16.6667"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundIntermediate(decimal.RequireFromString(tt.amount))
			expected := decimal.RequireFromString(tt.expected)
			assert.True(t, got.Equal(expected),
				"expected %s, got %s", expected.String(), got.String())
		})
	}
}

func TestClampZero(t *testing.T) {
	assert.True(t, ClampZero(decimal.RequireFromString("-0.01")).IsZero())
	assert.True(t, ClampZero(decimal.RequireFromString("-125")).IsZero())
	assert.True(t, ClampZero(decimal.RequireFromString("10.50")).Equal(decimal.RequireFromString("10.50")))
	assert.True(t, ClampZero(decimal.Zero).IsZero())
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		pct      string
		expected string
	}{
		{name: "ten_percent", amount: "100", pct: "10", expected: "10"},
		{name: "fractional_result", amount: "49.99", pct: "7.5", expected: "3.7493"},
		{name: "zero_percent", amount: "100", pct: "0", expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentOf(decimal.RequireFromString(tt.amount), decimal.RequireFromString(tt.pct))
			expected := decimal.RequireFromString(tt.expected)
			assert.True(t, got.Equal(expected),
				"expected %s, got %s", expected.String(), got.String())
		})
	}
}
