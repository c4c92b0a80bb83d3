// Package referral resolves a member's ancestor chain into the ordered list
// of bounty recipients.
package referral

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrChainIntegrity is returned when a member is missing from their own
// stored ancestry. Distribution must abort rather than silently skip.
var ErrChainIntegrity = errors.New("member not found in referral ancestry")

// MaxDepth is how far up the tree bounties propagate. Entries beyond this
// level are never emitted.
const MaxDepth = 10

// Entry is one bounty recipient: level 1 is the member's direct upline.
type Entry struct {
	ReferrerID string
	Level      int
	Percentage decimal.Decimal
}

// Direct reports whether the entry is the direct upline.
func (e Entry) Direct() bool { return e.Level == 1 }

// levelPercentages maps chain level to bounty percent of the principal.
var levelPercentages = map[int]decimal.Decimal{
	1:  decimal.NewFromInt(10),
	2:  decimal.NewFromInt(3),
	3:  decimal.NewFromInt(2),
	4:  decimal.NewFromInt(1),
	5:  decimal.NewFromInt(1),
	6:  decimal.NewFromInt(1),
	7:  decimal.NewFromInt(1),
	8:  decimal.NewFromInt(1),
	9:  decimal.NewFromInt(1),
	10: decimal.NewFromInt(1),
}

// Percentage returns the bounty percent for a chain level, zero beyond the
// table.
func Percentage(level int) decimal.Decimal {
	if p, ok := levelPercentages[level]; ok {
		return p
	}
	return decimal.Zero
}

// Resolve walks the stored ancestry (terminal ancestor first, the member
// last) and returns the bounty chain: every ancestor strictly above the
// member, nearest upline first, truncated at MaxDepth.
//
// An empty ancestry resolves to no recipients. An ancestry that does not
// contain the member fails with ErrChainIntegrity.
func Resolve(ancestry []string, memberID string) ([]Entry, error) {
	if len(ancestry) == 0 {
		return nil, nil
	}

	idx := -1
	for i, id := range ancestry {
		if id == memberID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrChainIntegrity
	}

	depth := idx
	if depth > MaxDepth {
		depth = MaxDepth
	}

	chain := make([]Entry, 0, depth)
	for level := 1; level <= depth; level++ {
		chain = append(chain, Entry{
			ReferrerID: ancestry[idx-level],
			Level:      level,
			Percentage: Percentage(level),
		})
	}
	return chain, nil
}
