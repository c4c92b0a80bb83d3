package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"olympus.fund/internal/referral"
	"olympus.fund/internal/wallet"
)

// bountyBatchSize bounds how many ancestors are written per round trip.
// Batch i fully completes before batch i+1 begins.
const bountyBatchSize = 100

// distributeBounty fans the resolved referral chain out against the raw
// principal, inside the caller's transaction. Each recipient gets a bounty
// event, a transaction log row, and a referral-bounty credit. Entries with
// no referrer id are skipped: the chain simply ended early.
func distributeBounty(ctx context.Context, tx pgx.Tx, principal decimal.Decimal, chain []referral.Entry, fromMemberID, enrollmentID string) error {
	for start := 0; start < len(chain); start += bountyBatchSize {
		end := start + bountyBatchSize
		if end > len(chain) {
			end = len(chain)
		}
		if err := distributeBatch(ctx, tx, principal, chain[start:end], fromMemberID, enrollmentID); err != nil {
			return err
		}
	}
	return nil
}

func distributeBatch(ctx context.Context, tx pgx.Tx, principal decimal.Decimal, batch []referral.Entry, fromMemberID, enrollmentID string) error {
	bountyRows := make([][]any, 0, len(batch))
	logRows := make([][]any, 0, len(batch))
	credits := &pgx.Batch{}

	for _, entry := range batch {
		if entry.ReferrerID == "" {
			continue
		}
		earnings := bountyEarnings(principal, entry.Percentage)
		bountyType := BountyIndirect
		description := fmt.Sprintf("Multiple Referral Level %d", entry.Level)
		if entry.Direct() {
			bountyType = BountyDirect
			description = "Direct Referral"
		}

		bountyRows = append(bountyRows, []any{
			uuid.NewString(),
			entry.ReferrerID,
			fromMemberID,
			enrollmentID,
			entry.Level,
			entry.Percentage,
			earnings,
			bountyType,
		})
		logRows = append(logRows, []any{
			uuid.NewString(),
			entry.ReferrerID,
			earnings,
			description,
		})
		credits.Queue(creditStmt(wallet.TierReferralBounty), entry.ReferrerID, earnings)
	}
	if len(bountyRows) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"bounty_events"},
		[]string{"id", "member_id", "from_member_id", "enrollment_id", "level", "percentage", "earnings", "bounty_type"},
		pgx.CopyFromRows(bountyRows),
	)
	if err != nil {
		return err
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"transactions"},
		[]string{"id", "member_id", "amount", "description"},
		pgx.CopyFromRows(logRows),
	)
	if err != nil {
		return err
	}

	// Credits within a batch are independent keyed upserts; one pipelined
	// batch bounds the peak write load.
	results := tx.SendBatch(ctx, credits)
	for i := 0; i < credits.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}

func bountyEarnings(principal, percentage decimal.Decimal) decimal.Decimal {
	return principal.Mul(percentage).Div(decimal.NewFromInt(100)).Round(2)
}
