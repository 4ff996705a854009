package service

import (
	"fmt"
	"testing"

	ierr "github.com/rebillhq/rebill/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributeDiscount_FlatAmount(t *testing.T) {
	tests := []struct {
		name             string
		weights          map[string]string
		discount         string
		expectedPortions map[string]string
	}{
		{
			name:             "even_split",
			weights:          map[string]string{"a": "50.00", "b": "50.00"},
			discount:         "10.00",
			expectedPortions: map[string]string{"a": "5.00", "b": "5.00"},
		},
		{
			name:             "uneven_weights",
			weights:          map[string]string{"a": "75.00", "b": "25.00"},
			discount:         "10.00",
			expectedPortions: map[string]string{"a": "7.50", "b": "2.50"},
		},
		{
			name:     "residual_absorbed_by_last_key",
			weights:  map[string]string{"a": "33.33", "b": "33.33", "c": "33.34"},
			discount: "10.00",
			// a and b each get 3.33, c absorbs 10.00 - 6.66
			expectedPortions: map[string]string{"a": "3.33", "b": "3.33", "c": "3.34"},
		},
		{
			name:             "discount_capped_at_total_weight",
			weights:          map[string]string{"a": "5.00", "b": "5.00"},
			discount:         "100.00",
			expectedPortions: map[string]string{"a": "5.00", "b": "5.00"},
		},
		{
			name:             "single_key",
			weights:          map[string]string{"only": "42.00"},
			discount:         "1.99",
			expectedPortions: map[string]string{"only": "1.99"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := make(map[string]decimal.Decimal, len(tt.weights))
			for k, v := range tt.weights {
				weights[k] = decimal.RequireFromString(v)
			}

			result, err := DistributeDiscount(weights, decimal.RequireFromString(tt.discount), false)
			require.NoError(t, err)

			sum := decimal.Zero
			for key, expected := range tt.expectedPortions {
				portion := result.DiscountPortions[key]
				assert.True(t, portion.Equal(decimal.RequireFromString(expected)),
					"key %s: expected portion %s, got %s", key, expected, portion.String())
				assert.True(t, result.DiscountedPrices[key].Equal(weights[key].Sub(portion)))
				sum = sum.Add(portion)
			}
			assert.True(t, sum.Equal(result.TotalDiscount),
				"portions must sum to the aggregate exactly: %s vs %s", sum.String(), result.TotalDiscount.String())
		})
	}
}

func TestDistributeDiscount_Percent(t *testing.T) {
	weights := map[string]decimal.Decimal{
		"li_1": decimal.RequireFromString("30.00"),
		"li_2": decimal.RequireFromString("20.00"),
	}

	result, err := DistributeDiscount(weights, decimal.NewFromInt(10), true)
	require.NoError(t, err)

	assert.True(t, result.TotalDiscount.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, result.DiscountPortions["li_1"].Equal(decimal.RequireFromString("3.00")))
	assert.True(t, result.DiscountPortions["li_2"].Equal(decimal.RequireFromString("2.00")))
}

// TestDistributeDiscount_ExactConservation verifies that no cents leak or
// duplicate regardless of how awkwardly the weights divide, including prime
// key counts.
func TestDistributeDiscount_ExactConservation(t *testing.T) {
	for _, keyCount := range []int{2, 3, 5, 7, 11, 13, 17, 23, 31, 50} {
		t.Run(fmt.Sprintf("keys_%d", keyCount), func(t *testing.T) {
			weights := make(map[string]decimal.Decimal, keyCount)
			for i := 0; i < keyCount; i++ {
				// awkward weights like 10.01, 10.03, 10.05 ...
				weights[fmt.Sprintf("li_%03d", i)] = decimal.RequireFromString("10.01").
					Add(decimal.NewFromInt(int64(i * 2)).Div(decimal.NewFromInt(100)))
			}

			for _, discount := range []string{"0.01", "1.00", "9.99", "33.33"} {
				result, err := DistributeDiscount(weights, decimal.RequireFromString(discount), false)
				require.NoError(t, err)

				sum := decimal.Zero
				for _, portion := range result.DiscountPortions {
					sum = sum.Add(portion)
					assert.False(t, portion.IsNegative(), "no negative portions")
				}
				assert.True(t, sum.Equal(result.TotalDiscount),
					"discount %s over %d keys: portions sum %s != aggregate %s",
					discount, keyCount, sum.String(), result.TotalDiscount.String())
			}
		})
	}
}

func TestDistributeDiscount_Errors(t *testing.T) {
	_, err := DistributeDiscount(map[string]decimal.Decimal{}, decimal.NewFromInt(10), false)
	assert.True(t, ierr.IsValidation(err))

	weights := map[string]decimal.Decimal{"a": decimal.NewFromInt(10)}
	_, err = DistributeDiscount(weights, decimal.NewFromInt(-1), false)
	assert.True(t, ierr.IsValidation(err))
}

func TestDistributeDiscount_ZeroDiscount(t *testing.T) {
	weights := map[string]decimal.Decimal{
		"a": decimal.RequireFromString("10.00"),
		"b": decimal.RequireFromString("20.00"),
	}

	result, err := DistributeDiscount(weights, decimal.Zero, false)
	require.NoError(t, err)
	assert.True(t, result.TotalDiscount.IsZero())
	for key, weight := range weights {
		assert.True(t, result.DiscountPortions[key].IsZero())
		assert.True(t, result.DiscountedPrices[key].Equal(weight))
	}
}

func TestBlendedUnitPrice(t *testing.T) {
	weights := map[string]decimal.Decimal{
		"a": decimal.RequireFromString("30.00"),
		"b": decimal.RequireFromString("20.00"),
	}

	blended := BlendedUnitPrice(weights, 3)
	assert.True(t, blended.Equal(decimal.RequireFromString("16.6667")),
		"expected 16.6667, got %s", blended.String())

	assert.True(t, BlendedUnitPrice(weights, 0).IsZero())
}
