package domain

// LineTotal returns round_half_up(unitPrice*quantity*(100-percent)/100) in
// minor units. percent is clamped to 0..100.
func LineTotal(unitPrice int64, quantity int, percent int) int64 {
	percent = ClampPercent(percent)
	n := unitPrice * int64(quantity) * int64(100-percent)
	if n < 0 {
		return -((-n + 50) / 100)
	}
	return (n + 50) / 100
}

// TierPrice is the discounted price of a single unit.
func TierPrice(unitPrice int64, percent int) int64 {
	return LineTotal(unitPrice, 1, percent)
}

// ClampPercent bounds p to 0..100.
func ClampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// MajorUnits converts minor units to the major-unit amount expected by the
// order API (10050 -> 100.5).
func MajorUnits(minor int64) float64 {
	return float64(minor) / 100
}
