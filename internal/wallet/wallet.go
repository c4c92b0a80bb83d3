// Package wallet implements the five-balance ledger used for every spend
// and credit in the platform. Balances are decimals with two fractional
// digits on write; deductions cascade across the sub-wallets in a fixed
// order and must consume the requested amount exactly.
package wallet

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is returned when the combined balance cannot cover a
// requested deduction, or when the cascade leaves a nonzero remainder.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Tier identifies one of the four named sub-wallets.
type Tier string

const (
	TierOlympusWallet   Tier = "OLYMPUS_WALLET"
	TierOlympusEarnings Tier = "OLYMPUS_EARNINGS"
	TierReferralBounty  Tier = "REFERRAL_BOUNTY"
	TierWinningEarnings Tier = "WINNING_EARNINGS"
)

// epsilon is the snap threshold: balances closer to zero than this are
// written back as exactly zero.
var epsilon = decimal.New(1, -6)

// Balances holds a member's spendable total and the four sub-wallets that
// compose it. Combined is the authoritative spendable amount; the
// sub-wallets bound what each category can contribute.
type Balances struct {
	Combined        decimal.Decimal
	OlympusWallet   decimal.Decimal
	OlympusEarnings decimal.Decimal
	ReferralBounty  decimal.Decimal
	WinningEarnings decimal.Decimal
}

// DeductResult is the outcome of a cascade deduction. IsReinvestment is set
// whenever the olympus-earnings tier was reached, even if it held nothing.
type DeductResult struct {
	Balances       Balances
	IsReinvestment bool
}

// Deduct drains amount from the sub-wallets in order: olympus wallet,
// olympus earnings, referral bounty, winning earnings. Each tier gives up
// the lesser of its balance and the remainder. The combined balance drops
// by the full amount regardless of which tiers were touched.
func (b Balances) Deduct(amount decimal.Decimal) (DeductResult, error) {
	amount = amount.Round(2)
	if amount.GreaterThan(b.Combined.Round(2)) {
		return DeductResult{}, ErrInsufficientFunds
	}

	remaining := amount
	res := DeductResult{Balances: b}

	res.Balances.OlympusWallet, remaining = drain(b.OlympusWallet.Round(2), remaining)

	if remaining.IsPositive() {
		res.IsReinvestment = true
		res.Balances.OlympusEarnings, remaining = drain(b.OlympusEarnings.Round(2), remaining)
	}
	if remaining.IsPositive() {
		res.Balances.ReferralBounty, remaining = drain(b.ReferralBounty.Round(2), remaining)
	}
	if remaining.IsPositive() {
		res.Balances.WinningEarnings, remaining = drain(b.WinningEarnings.Round(2), remaining)
	}

	// The pre-check already compared against Combined; this guards against
	// rounding drift across the tiers.
	if !remaining.Round(6).IsZero() {
		return DeductResult{}, ErrInsufficientFunds
	}

	res.Balances.Combined = b.Combined.Sub(amount)
	res.Balances = res.Balances.clamped()
	return res, nil
}

// Credit raises the named tier and the combined balance together.
func (b Balances) Credit(tier Tier, amount decimal.Decimal) Balances {
	switch tier {
	case TierOlympusWallet:
		b.OlympusWallet = b.OlympusWallet.Add(amount)
	case TierOlympusEarnings:
		b.OlympusEarnings = b.OlympusEarnings.Add(amount)
	case TierReferralBounty:
		b.ReferralBounty = b.ReferralBounty.Add(amount)
	case TierWinningEarnings:
		b.WinningEarnings = b.WinningEarnings.Add(amount)
	}
	b.Combined = b.Combined.Add(amount)
	return b
}

// DebitTier removes amount from a single named tier and the combined
// balance, without cascading. Used for category-bound withdrawals.
func (b Balances) DebitTier(tier Tier, amount decimal.Decimal) (Balances, error) {
	amount = amount.Round(2)
	if amount.GreaterThan(b.Combined.Round(2)) {
		return Balances{}, ErrInsufficientFunds
	}
	switch tier {
	case TierOlympusWallet:
		if amount.GreaterThan(b.OlympusWallet.Round(2)) {
			return Balances{}, ErrInsufficientFunds
		}
		b.OlympusWallet = b.OlympusWallet.Sub(amount)
	case TierOlympusEarnings:
		if amount.GreaterThan(b.OlympusEarnings.Round(2)) {
			return Balances{}, ErrInsufficientFunds
		}
		b.OlympusEarnings = b.OlympusEarnings.Sub(amount)
	case TierReferralBounty:
		if amount.GreaterThan(b.ReferralBounty.Round(2)) {
			return Balances{}, ErrInsufficientFunds
		}
		b.ReferralBounty = b.ReferralBounty.Sub(amount)
	case TierWinningEarnings:
		if amount.GreaterThan(b.WinningEarnings.Round(2)) {
			return Balances{}, ErrInsufficientFunds
		}
		b.WinningEarnings = b.WinningEarnings.Sub(amount)
	}
	b.Combined = b.Combined.Sub(amount)
	return b.clamped(), nil
}

// drain subtracts the lesser of balance and remaining from balance,
// returning the new balance and what is still owed.
func drain(balance, remaining decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if balance.GreaterThanOrEqual(remaining) {
		return balance.Sub(remaining), decimal.Zero
	}
	return decimal.Zero, remaining.Sub(balance)
}

func (b Balances) clamped() Balances {
	b.Combined = clamp(b.Combined)
	b.OlympusWallet = clamp(b.OlympusWallet)
	b.OlympusEarnings = clamp(b.OlympusEarnings)
	b.ReferralBounty = clamp(b.ReferralBounty)
	b.WinningEarnings = clamp(b.WinningEarnings)
	return b
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() || d.Abs().LessThan(epsilon) {
		return decimal.Zero
	}
	return d
}
