package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"olympus.fund/internal/referral"
	"olympus.fund/internal/reward"
	"olympus.fund/internal/wallet"
)

var hundred = decimal.NewFromInt(100)

// reinvestBonusRate is the 1% bump applied to reinvested principal.
var reinvestBonusRate = decimal.RequireFromString("1.01")

// EnrollPackage buys a package: the purchase amount cascades out of the
// member's wallets under a row lock, the enrollment is opened ACTIVE with
// its maturity timer, and the referral chain is paid out against the raw
// purchase amount.
func (s *Store) EnrollPackage(ctx context.Context, input EnrollPackageInput) (Enrollment, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Enrollment{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	pkg, err := getPackage(ctx, tx, input.PackageID)
	if err != nil {
		return Enrollment{}, err
	}
	if pkg.IsDisabled {
		return Enrollment{}, ErrPackageDisabled
	}

	balances, err := lockEarnings(ctx, tx, input.MemberID)
	if err != nil {
		return Enrollment{}, err
	}

	ref, hasRef, err := getReferral(ctx, tx, input.MemberID)
	if err != nil {
		return Enrollment{}, err
	}
	var chain []referral.Entry
	if hasRef {
		chain, err = referral.Resolve(ref.Ancestry, input.MemberID)
		if err != nil {
			return Enrollment{}, err
		}
	}

	deducted, err := balances.Deduct(input.Amount)
	if err != nil {
		return Enrollment{}, err
	}

	now := s.now()
	completion := now.Add(time.Duration(pkg.MaturityDays) * 24 * time.Hour)
	enrollment := Enrollment{
		ID:             uuid.NewString(),
		MemberID:       input.MemberID,
		PackageID:      pkg.ID,
		Amount:         input.Amount.Round(2),
		EarningsAmount: input.Amount.Mul(pkg.Percentage).Div(hundred).Round(2),
		Status:         StatusActive,
		IsReinvestment: deducted.IsReinvestment,
		CreatedAt:      now,
		CompletionAt:   &completion,
	}
	if err := insertEnrollment(ctx, tx, enrollment); err != nil {
		return Enrollment{}, err
	}

	if err := insertTransaction(ctx, tx, Transaction{
		MemberID:    input.MemberID,
		Amount:      input.Amount,
		Description: fmt.Sprintf("Package Enrolled: %s", pkg.Name),
	}); err != nil {
		return Enrollment{}, err
	}

	if spins := reward.PackageSpins(input.Amount); spins > 0 {
		if err := addSpins(ctx, tx, input.MemberID, spins); err != nil {
			return Enrollment{}, err
		}
		if err := insertTransaction(ctx, tx, Transaction{
			MemberID:    input.MemberID,
			Description: fmt.Sprintf("Package Task + %d Spins", spins),
		}); err != nil {
			return Enrollment{}, err
		}
	}

	if err := writeEarnings(ctx, tx, input.MemberID, deducted.Balances); err != nil {
		return Enrollment{}, err
	}

	// Bounties run against the raw input amount, not the rounded principal.
	if err := distributeBounty(ctx, tx, input.Amount, chain, input.MemberID, enrollment.ID); err != nil {
		return Enrollment{}, err
	}

	// First purchase activates the member.
	if _, err := tx.Exec(ctx, `
		UPDATE members SET is_active = TRUE WHERE id = $1 AND NOT is_active
	`, input.MemberID); err != nil {
		return Enrollment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Enrollment{}, err
	}
	return enrollment, nil
}

// ActiveEnrollments returns a member's ACTIVE enrollments with their
// maturity progress. Enrollments that just reached 100% get their ready
// flag flipped as a side effect; repeating the read performs no further
// writes.
func (s *Store) ActiveEnrollments(ctx context.Context, memberID string) ([]EnrollmentProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.member_id, e.package_id, e.amount, e.earnings_amount,
		       e.status, e.is_ready_to_claim, e.is_reinvestment, e.created_at, e.completion_at,
		       p.name, p.color, p.maturity_days, p.percentage
		FROM package_enrollments e
		JOIN packages p ON p.id = e.package_id
		WHERE e.member_id = $1 AND e.status = $2
		ORDER BY e.created_at DESC
	`, memberID, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := s.now()
	var result []EnrollmentProgress
	var flipIDs []string
	for rows.Next() {
		var ep EnrollmentProgress
		err := rows.Scan(
			&ep.ID, &ep.MemberID, &ep.PackageID, &ep.Amount, &ep.EarningsAmount,
			&ep.Status, &ep.IsReadyToClaim, &ep.IsReinvestment, &ep.CreatedAt, &ep.CompletionAt,
			&ep.PackageName, &ep.PackageColor, &ep.PackageDays, &ep.PackagePercentage,
		)
		if err != nil {
			return nil, err
		}
		pct := maturityPercent(ep.CreatedAt, ep.CompletionAt, now)
		ep.Completion = pct.Round(2)
		ep.CurrentAmount = ep.Amount.Add(ep.EarningsAmount.Mul(pct).Div(hundred)).Round(2)
		if pct.Equal(hundred) && !ep.IsReadyToClaim {
			flipIDs = append(flipIDs, ep.ID)
			ep.IsReadyToClaim = true
		}
		result = append(result, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(flipIDs) > 0 {
		_, err = s.pool.Exec(ctx, `
			UPDATE package_enrollments
			SET is_ready_to_claim = TRUE
			WHERE id = ANY($1) AND NOT is_ready_to_claim
		`, flipIDs)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Claim ends a matured enrollment and credits its proceeds to the olympus
// earnings wallet. The caller restates the principal and profit; any
// mismatch against the stored row is rejected.
func (s *Store) Claim(ctx context.Context, input ClaimInput) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	enrollment, err := getEnrollment(ctx, tx, input.EnrollmentID, input.MemberID)
	if err != nil {
		return err
	}
	pkg, err := getPackage(ctx, tx, enrollment.PackageID)
	if err != nil {
		return err
	}

	pct := maturityPercent(enrollment.CreatedAt, enrollment.CompletionAt, s.now())
	if !enrollment.IsReadyToClaim || !pct.Equal(hundred) {
		return ErrNotReady
	}

	total := enrollment.Amount.Add(enrollment.EarningsAmount)
	if !input.Amount.Add(input.Earnings).Equal(total) {
		return ErrInvalidClaim
	}

	if err := endEnrollment(ctx, tx, enrollment.ID); err != nil {
		return err
	}

	if err := creditEarnings(ctx, tx, input.MemberID, wallet.TierOlympusEarnings, total); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, Transaction{
		MemberID:    input.MemberID,
		Amount:      total,
		Description: fmt.Sprintf("%s Package Claimed", pkg.Name),
	}); err != nil {
		return err
	}
	if err := insertSnapshot(ctx, tx, enrollment, enrollment.EarningsAmount); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Reinvest ends a matured enrollment and rolls its proceeds, plus a 1%
// bonus, straight into a new enrollment without touching a wallet. Bounties
// and deposit-tier spins fan out against the boosted amount.
func (s *Store) Reinvest(ctx context.Context, input ReinvestInput) (Enrollment, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Enrollment{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	source, err := getEnrollment(ctx, tx, input.EnrollmentID, input.MemberID)
	if err != nil {
		return Enrollment{}, err
	}
	pct := maturityPercent(source.CreatedAt, source.CompletionAt, s.now())
	if !source.IsReadyToClaim || !pct.Equal(hundred) {
		return Enrollment{}, ErrNotReady
	}

	if err := endEnrollment(ctx, tx, source.ID); err != nil {
		return Enrollment{}, err
	}

	pkg, err := getPackage(ctx, tx, input.PackageID)
	if err != nil {
		return Enrollment{}, err
	}
	if pkg.IsDisabled {
		return Enrollment{}, ErrPackageDisabled
	}

	ref, hasRef, err := getReferral(ctx, tx, input.MemberID)
	if err != nil {
		return Enrollment{}, err
	}
	var chain []referral.Entry
	if hasRef {
		chain, err = referral.Resolve(ref.Ancestry, input.MemberID)
		if err != nil {
			return Enrollment{}, err
		}
	}

	final := input.Amount.Mul(reinvestBonusRate).Round(2)
	earningsAmount := final.Mul(pkg.Percentage).Div(hundred).Round(2)
	spins := reward.DepositSpins(final)

	now := s.now()
	completion := now.Add(time.Duration(pkg.MaturityDays) * 24 * time.Hour)
	enrollment := Enrollment{
		ID:             uuid.NewString(),
		MemberID:       input.MemberID,
		PackageID:      pkg.ID,
		Amount:         final,
		EarningsAmount: earningsAmount,
		Status:         StatusActive,
		IsReinvestment: true,
		CreatedAt:      now,
		CompletionAt:   &completion,
	}
	if err := insertEnrollment(ctx, tx, enrollment); err != nil {
		return Enrollment{}, err
	}

	if err := insertTransaction(ctx, tx, Transaction{
		MemberID:    input.MemberID,
		Amount:      final,
		Description: fmt.Sprintf("Package Reinvested: %s + 1%% Bonus", pkg.Name),
	}); err != nil {
		return Enrollment{}, err
	}
	if spins > 0 {
		if err := addSpins(ctx, tx, input.MemberID, spins); err != nil {
			return Enrollment{}, err
		}
		if err := insertTransaction(ctx, tx, Transaction{
			MemberID:    input.MemberID,
			Description: fmt.Sprintf("Package Spin + %d", spins),
		}); err != nil {
			return Enrollment{}, err
		}
	}

	if err := insertSnapshot(ctx, tx, source, earningsAmount); err != nil {
		return Enrollment{}, err
	}

	if err := distributeBounty(ctx, tx, final, chain, input.MemberID, enrollment.ID); err != nil {
		return Enrollment{}, err
	}

	// Referrers share the deposit-tier spin grant on reinvestments.
	if spins > 0 {
		for _, entry := range chain {
			if entry.ReferrerID == "" {
				continue
			}
			if err := addSpins(ctx, tx, entry.ReferrerID, spins); err != nil {
				return Enrollment{}, err
			}
			if err := insertTransaction(ctx, tx, Transaction{
				MemberID:    entry.ReferrerID,
				Description: fmt.Sprintf("Package Referral Spin + %d", spins),
			}); err != nil {
				return Enrollment{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Enrollment{}, err
	}
	return enrollment, nil
}

// maturityPercent is the elapsed share of the maturity window, clamped to
// [0, 100]. No completion date means the enrollment matures immediately.
func maturityPercent(createdAt time.Time, completionAt *time.Time, now time.Time) decimal.Decimal {
	if completionAt == nil {
		return hundred
	}
	elapsed := now.Sub(createdAt)
	if elapsed < 0 {
		elapsed = 0
	}
	total := completionAt.Sub(createdAt)
	if total <= 0 {
		return hundred
	}
	pct := decimal.NewFromInt(elapsed.Milliseconds()).Mul(hundred).
		Div(decimal.NewFromInt(total.Milliseconds()))
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

func getEnrollment(ctx context.Context, tx pgx.Tx, id, memberID string) (Enrollment, error) {
	var e Enrollment
	err := tx.QueryRow(ctx, `
		SELECT id, member_id, package_id, amount, earnings_amount,
		       status, is_ready_to_claim, is_reinvestment, created_at, completion_at
		FROM package_enrollments
		WHERE id = $1 AND member_id = $2
	`, id, memberID).Scan(
		&e.ID, &e.MemberID, &e.PackageID, &e.Amount, &e.EarningsAmount,
		&e.Status, &e.IsReadyToClaim, &e.IsReinvestment, &e.CreatedAt, &e.CompletionAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, err
	}
	return e, nil
}

func insertEnrollment(ctx context.Context, tx pgx.Tx, e Enrollment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO package_enrollments
			(id, member_id, package_id, amount, earnings_amount, status,
			 is_ready_to_claim, is_reinvestment, created_at, completion_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		e.ID, e.MemberID, e.PackageID, e.Amount, e.EarningsAmount, e.Status,
		e.IsReadyToClaim, e.IsReinvestment, e.CreatedAt, e.CompletionAt,
	)
	return err
}

// endEnrollment performs the guarded terminal transition. Zero affected
// rows means another caller won the race.
func endEnrollment(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE package_enrollments
		SET status = $2, is_ready_to_claim = FALSE
		WHERE id = $1 AND status <> $2
	`, id, StatusEnded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// insertSnapshot writes the immutable audit copy of an ended enrollment.
func insertSnapshot(ctx context.Context, tx pgx.Tx, e Enrollment, earningsAmount decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO earnings_snapshots
			(id, enrollment_id, package_id, member_id, enrolled_at, amount, earnings_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.NewString(), e.ID, e.PackageID, e.MemberID, e.CreatedAt, e.Amount, earningsAmount, StatusEnded)
	return err
}
