// Package pricing is the marketplace's deterministic quote engine.
//
// All arithmetic is fixed-point uint64 with explicit overflow checks; no
// floating point anywhere, so identical inputs quote identically on every
// node. The engine is pure: it reads listing parameters and returns the
// price to persist, it never mutates state itself.
//
// Curve shape: linear additive steps. Each unit bought moves the marginal
// price up by one step, each unit sold moves it down by one step, where
//
//	step = max(1, initialPrice / shareSupply)
//
// A buy of n units therefore costs the sum of the n successive post-step
// marginal prices, and selling those n units right back returns exactly the
// same sum and restores the pre-buy price. The only rounding residue is the
// floor clamp: the price never drops below one minimal currency unit, and
// units quoted at the floor break the symmetry by the clamped difference.
package pricing

import (
	"math/bits"

	"fracmarket/internal/market/models"
	dErrors "fracmarket/pkg/domain-errors"
)

// Floor is the lowest marginal price the curve can reach.
const Floor uint64 = 1

// Quote is a priced trade: the total to move and the marginal price to
// persist after the last unit.
type Quote struct {
	Total    uint64
	NewPrice uint64
}

// Step derives the listing's fixed per-unit price increment from its
// reference price and supply.
func Step(initialPrice, shareSupply uint64) uint64 {
	step := initialPrice / shareSupply
	if step == 0 {
		step = 1
	}
	return step
}

// QuoteBuy prices a purchase of amount shares walking the curve upward from
// the listing's current price. The returned price is strictly greater than
// the current one.
func QuoteBuy(l *models.Listing, amount uint64) (Quote, error) {
	if amount == 0 {
		return Quote{}, dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	step := Step(l.InitialPrice, l.ShareSupply)

	rise, err := mul(step, amount)
	if err != nil {
		return Quote{}, err
	}
	newPrice, err := add(l.CurrentPrice, rise)
	if err != nil {
		return Quote{}, err
	}

	// cost = sum_{i=1..amount} (current + i*step)
	//      = amount*current + step*amount*(amount+1)/2
	base, err := mul(l.CurrentPrice, amount)
	if err != nil {
		return Quote{}, err
	}
	steps, err := triangle(step, amount)
	if err != nil {
		return Quote{}, err
	}
	total, err := add(base, steps)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Total: total, NewPrice: newPrice}, nil
}

// QuoteSell prices a sale of amount shares walking the curve downward from
// the listing's current price. Marginal prices clamp at Floor and the
// persisted price never drops below it.
func QuoteSell(l *models.Listing, amount uint64) (Quote, error) {
	if amount == 0 {
		return Quote{}, dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	step := Step(l.InitialPrice, l.ShareSupply)
	current := l.CurrentPrice

	newPrice := Floor
	if drop, err := mul(step, amount); err == nil && current > drop && current-drop >= Floor {
		newPrice = current - drop
	}

	// proceeds = sum_{i=0..amount-1} max(Floor, current - i*step)
	// m counts the units priced above the floor; the rest pay Floor each.
	m := amount
	if current > Floor {
		unclamped := (current-Floor)/step + 1
		if unclamped < m {
			m = unclamped
		}
	} else {
		m = 0
	}

	above, err := mul(current, m)
	if err != nil {
		return Quote{}, err
	}
	if m > 0 {
		// subtract step * m*(m-1)/2
		down, terr := triangle(step, m-1)
		if terr != nil {
			return Quote{}, terr
		}
		above -= down
	}
	floored, err := mul(Floor, amount-m)
	if err != nil {
		return Quote{}, err
	}
	total, err := add(above, floored)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Total: total, NewPrice: newPrice}, nil
}

// BuyoutPrice is the whole-item valuation: the full fractional valuation at
// the current marginal price plus a 5% premium. Always at least
// currentPrice * shareSupply, keeping the buyout economically consistent
// with the fractional prices already established.
func BuyoutPrice(l *models.Listing) (uint64, error) {
	full, err := mul(l.CurrentPrice, l.ShareSupply)
	if err != nil {
		return 0, err
	}
	// floor(full * 105 / 100) without overflowing the intermediate product
	q, r := full/100, full%100
	withPremium, err := mul(q, 105)
	if err != nil {
		return 0, err
	}
	return add(withPremium, r*105/100)
}

// ProRata computes amount * numerator / denominator with a 128-bit
// intermediate, flooring the result. Used for fee and reward splits.
func ProRata(amount, numerator, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, overflowErr()
	}
	hi, lo := bits.Mul64(amount, numerator)
	if hi == 0 {
		return lo / denominator, nil
	}
	if hi >= denominator {
		return 0, overflowErr()
	}
	quot, _ := bits.Div64(hi, lo, denominator)
	return quot, nil
}

// RedemptionPayout is a holder's proportional claim on the earmarked sale
// proceeds. Integer division floors the result: the remainder stays with the
// marketplace, never with the redeemer, so the sum of all payouts can never
// exceed the proceeds.
func RedemptionPayout(proceeds, shares, shareSupply uint64) (uint64, error) {
	return ProRata(proceeds, shares, shareSupply)
}

func add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, overflowErr()
	}
	return sum, nil
}

func mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, overflowErr()
	}
	return lo, nil
}

// triangle computes step * n * (n+1) / 2.
func triangle(step, n uint64) (uint64, error) {
	a, b := n, n+1
	if a%2 == 0 {
		a /= 2
	} else {
		b /= 2
	}
	pairs, err := mul(a, b)
	if err != nil {
		return 0, err
	}
	return mul(step, pairs)
}

func overflowErr() error {
	return dErrors.New(dErrors.CodeArithmeticOverflow, "price computation exceeds 64-bit range")
}
