package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"race-photos-backend/internal/pricing"
)

func TestPricePerPhoto(t *testing.T) {
	cases := map[int]int64{
		-3:  0,
		0:   0,
		1:   1499,
		2:   1299,
		3:   1166,
		4:   1099,
		5:   999,
		12:  999,
		100: 999,
	}
	for count, want := range cases {
		assert.Equal(t, want, pricing.PricePerPhoto(count), "count=%d", count)
	}
}

func TestPricePerPhotoIsNonIncreasing(t *testing.T) {
	prev := pricing.PricePerPhoto(1)
	for n := 2; n <= 50; n++ {
		cur := pricing.PricePerPhoto(n)
		assert.LessOrEqual(t, cur, prev, "count=%d", n)
		prev = cur
	}
}

func TestTotalAmount(t *testing.T) {
	assert.Equal(t, int64(1499), pricing.TotalAmount(1))
	assert.Equal(t, int64(2598), pricing.TotalAmount(2))
	assert.Equal(t, int64(4995), pricing.TotalAmount(5))
	assert.Equal(t, int64(0), pricing.TotalAmount(0))
	assert.Equal(t, int64(0), pricing.TotalAmount(-1))

	for n := 1; n <= 20; n++ {
		assert.Equal(t, pricing.TotalAmount(n), pricing.TotalAmount(n), "deterministic")
	}
}

func TestCalculateSavings(t *testing.T) {
	assert.Equal(t, pricing.Savings{}, pricing.CalculateSavings(1))
	assert.Equal(t, pricing.Savings{}, pricing.CalculateSavings(0))

	s := pricing.CalculateSavings(5)
	assert.Equal(t, int64(500), s.SavingsPerPhoto)
	assert.Equal(t, int64(2500), s.Savings)
	assert.Equal(t, 33, s.PercentageSaved)

	s = pricing.CalculateSavings(2)
	assert.Equal(t, int64(200), s.SavingsPerPhoto)
	assert.Equal(t, 13, s.PercentageSaved)
}

func TestTierFor(t *testing.T) {
	_, ok := pricing.TierFor(0)
	assert.False(t, ok)

	tier, ok := pricing.TierFor(250)
	assert.True(t, ok)
	assert.Equal(t, 5, tier.MinPhotos)
	assert.Equal(t, "$9.99", tier.DisplayPrice)

	tiers := pricing.Tiers()
	tiers[0].PricePerPhoto = 1
	assert.Equal(t, int64(1499), pricing.PricePerPhoto(1))
}

func TestValidPhotoCount(t *testing.T) {
	assert.False(t, pricing.ValidPhotoCount(0))
	assert.True(t, pricing.ValidPhotoCount(1))
	assert.True(t, pricing.ValidPhotoCount(100))
	assert.False(t, pricing.ValidPhotoCount(101))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$14.99", pricing.FormatPrice(1499))
	assert.Equal(t, "$49.95", pricing.FormatPrice(4995))
	assert.Equal(t, "$0.05", pricing.FormatPrice(5))
}
