// Package pricing computes per-photo prices from the volume discount table.
// All amounts are integer cents.
package pricing

import "fmt"

// MaxPhotosPerOrder caps how many photos a single checkout may include.
const MaxPhotosPerOrder = 100

// Tier is one row of the volume discount table. MaxPhotos of 0 means the tier
// is open-ended.
type Tier struct {
	MinPhotos     int    `json:"min_photos"`
	MaxPhotos     int    `json:"max_photos,omitempty"`
	PricePerPhoto int64  `json:"price_per_photo"`
	DisplayPrice  string `json:"display_price"`
}

// Savings describes the discount relative to buying photos one at a time.
type Savings struct {
	Savings         int64 `json:"savings"`
	SavingsPerPhoto int64 `json:"savings_per_photo"`
	PercentageSaved int   `json:"percentage_saved"`
}

var tiers = []Tier{
	{MinPhotos: 1, MaxPhotos: 1, PricePerPhoto: 1499, DisplayPrice: "$14.99"},
	{MinPhotos: 2, MaxPhotos: 2, PricePerPhoto: 1299, DisplayPrice: "$12.99"},
	{MinPhotos: 3, MaxPhotos: 3, PricePerPhoto: 1166, DisplayPrice: "$11.66"},
	{MinPhotos: 4, MaxPhotos: 4, PricePerPhoto: 1099, DisplayPrice: "$10.99"},
	{MinPhotos: 5, PricePerPhoto: 999, DisplayPrice: "$9.99"},
}

// Tiers returns a copy of the discount table in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// TierFor returns the tier that applies to count. Counts above the last
// bounded tier fall into the open-ended one.
func TierFor(count int) (Tier, bool) {
	if count <= 0 {
		return Tier{}, false
	}
	for _, t := range tiers {
		if count >= t.MinPhotos && (t.MaxPhotos == 0 || count <= t.MaxPhotos) {
			return t, true
		}
	}
	return tiers[len(tiers)-1], true
}

// PricePerPhoto returns the unit price for an order of count photos.
func PricePerPhoto(count int) int64 {
	t, ok := TierFor(count)
	if !ok {
		return 0
	}
	return t.PricePerPhoto
}

// TotalAmount returns the order total for count photos.
func TotalAmount(count int) int64 {
	return PricePerPhoto(count) * int64(max(count, 0))
}

// CalculateSavings compares count photos against the single-photo price.
func CalculateSavings(count int) Savings {
	if count <= 1 {
		return Savings{}
	}
	single := tiers[0].PricePerPhoto
	perPhoto := single - PricePerPhoto(count)
	pct := float64(perPhoto) / float64(single) * 100
	return Savings{
		Savings:         perPhoto * int64(count),
		SavingsPerPhoto: perPhoto,
		PercentageSaved: int(pct + 0.5),
	}
}

// ValidPhotoCount reports whether count can be checked out in one order.
func ValidPhotoCount(count int) bool {
	return count > 0 && count <= MaxPhotosPerOrder
}

// FormatPrice renders cents as a dollar string, e.g. 1499 -> "$14.99".
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
