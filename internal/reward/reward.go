// Package reward holds the spin and bonus lookup tables granted as side
// effects of deposits, package purchases, and referral milestones.
package reward

import "github.com/shopspring/decimal"

// PackageSpins returns the wheel spins granted for a package purchase:
// 2 per full 5000 of principal, minimum 2 once the threshold is crossed.
func PackageSpins(amount decimal.Decimal) int64 {
	if amount.LessThan(decimal.NewFromInt(5000)) {
		return 0
	}
	spins := amount.Div(decimal.NewFromInt(5000)).IntPart() * 2
	if spins < 2 {
		spins = 2
	}
	return spins
}

type depositTier struct {
	threshold decimal.Decimal
	spins     int64
	bonusPct  decimal.Decimal
}

// depositTiers, lowest first. Spins below the 10000 threshold are not
// granted even though the 5000 tier exists; the bonus percent follows the
// same cut-off.
var depositTiers = []depositTier{
	{decimal.NewFromInt(5000), 1, decimal.Zero},
	{decimal.NewFromInt(10000), 2, decimal.NewFromInt(2)},
	{decimal.NewFromInt(30000), 4, decimal.NewFromInt(4)},
	{decimal.NewFromInt(50000), 6, decimal.NewFromInt(6)},
	{decimal.NewFromInt(70000), 8, decimal.NewFromInt(8)},
	{decimal.NewFromInt(100000), 10, decimal.NewFromInt(10)},
}

func highestTier(amount decimal.Decimal) (depositTier, bool) {
	if amount.LessThan(decimal.NewFromInt(10000)) {
		return depositTier{}, false
	}
	match := depositTiers[0]
	for _, t := range depositTiers {
		if t.threshold.LessThanOrEqual(amount) {
			match = t
		}
	}
	return match, true
}

// DepositSpins returns the wheel spins for a deposit-sized amount, used by
// reinvestments as well as approvals.
func DepositSpins(amount decimal.Decimal) int64 {
	t, ok := highestTier(amount)
	if !ok {
		return 0
	}
	return t.spins
}

// DepositBonus returns the bonus credited on an approved deposit, as a
// percentage of the deposited amount.
func DepositBonus(amount decimal.Decimal) decimal.Decimal {
	t, ok := highestTier(amount)
	if !ok {
		return decimal.Zero
	}
	return amount.Mul(t.bonusPct).Div(decimal.NewFromInt(100)).Round(2)
}

// MilestoneFlags are the one-time referral milestone markers persisted per
// member and day. Each tier only fires after the previous one has.
type MilestoneFlags struct {
	Three      bool
	Ten        bool
	TwentyFive bool
	Fifty      bool
	OneHundred bool
}

// Milestone evaluates the referral-count thresholds against the flags and
// returns the spins to grant plus the updated flags. At most one tier fires
// per evaluation; a count that jumps several tiers at once still walks them
// one call at a time.
func Milestone(referralCount int64, flags MilestoneFlags) (int64, MilestoneFlags) {
	var spins int64
	switch {
	case referralCount >= 3 && !flags.Three:
		spins, flags.Three = 3, true
	case referralCount >= 10 && flags.Three && !flags.Ten:
		spins, flags.Ten = 5, true
	case referralCount >= 25 && flags.Ten && !flags.TwentyFive:
		spins, flags.TwentyFive = 15, true
	case referralCount >= 50 && flags.TwentyFive && !flags.Fifty:
		spins, flags.Fifty = 35, true
	case referralCount >= 100 && flags.Fifty && !flags.OneHundred:
		spins, flags.OneHundred = 50, true
	}
	return spins, flags
}
