package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"olympus.fund/internal/reward"
	"olympus.fund/internal/wallet"
)

// Milestone flags are keyed by the platform's business day.
var manilaTZ = time.FixedZone("Asia/Manila", 8*60*60)

// CreateDeposit opens a PENDING deposit request. A member can only have one
// request in flight; the attachment is the already-uploaded receipt URL.
func (s *Store) CreateDeposit(ctx context.Context, input CreateDepositInput) (DepositRequest, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return DepositRequest{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	merchant, err := getMemberTx(ctx, tx, input.MerchantID)
	if err != nil {
		return DepositRequest{}, err
	}
	if merchant.Role != RoleMerchant {
		return DepositRequest{}, ErrNotFound
	}

	var pending int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM deposit_requests WHERE member_id = $1 AND status = $2
	`, input.MemberID, StatusPending).Scan(&pending)
	if err != nil {
		return DepositRequest{}, err
	}
	if pending > 0 {
		return DepositRequest{}, ErrPendingDepositExists
	}

	req := DepositRequest{
		ID:            uuid.NewString(),
		MemberID:      input.MemberID,
		Amount:        input.Amount.Round(2),
		AccountName:   input.AccountName,
		AccountNumber: input.AccountNumber,
		MerchantID:    input.MerchantID,
		Attachment:    input.Attachment,
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO deposit_requests
			(id, member_id, amount, account_name, account_number, merchant_id, attachment, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		req.ID, req.MemberID, req.Amount, req.AccountName, req.AccountNumber,
		req.MerchantID, req.Attachment, req.Status, req.CreatedAt,
	)
	if err != nil {
		return DepositRequest{}, err
	}

	if err := insertTransaction(ctx, tx, Transaction{
		MemberID:    input.MemberID,
		Amount:      input.Amount,
		Description: "Deposit Pending",
		Details:     fmt.Sprintf("Account Name: %s, Account Number: %s", input.AccountName, input.AccountNumber),
	}); err != nil {
		return DepositRequest{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return DepositRequest{}, err
	}
	return req, nil
}

// ProcessDeposit moves a PENDING request to its terminal state. Approval
// credits the olympus wallet with the amount plus the tiered bonus, runs
// the upline milestone check, and settles the merchant float when the
// processor carries one. Rejection only preserves the audit trail.
func (s *Store) ProcessDeposit(ctx context.Context, input ProcessDepositInput) (DepositRequest, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return DepositRequest{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	status := StatusRejected
	if input.Approve {
		status = StatusApproved
	}

	now := s.now()
	var req DepositRequest
	err = tx.QueryRow(ctx, `
		UPDATE deposit_requests
		SET status = $2, processed_by = $3, reject_note = $4, processed_at = $5
		WHERE id = $1 AND status = $6
		RETURNING id, member_id, amount, account_name, account_number, merchant_id,
		          attachment, status, reject_note, processed_by, created_at, processed_at
	`, input.RequestID, status, input.ProcessorID, input.Note, now, StatusPending).Scan(
		&req.ID, &req.MemberID, &req.Amount, &req.AccountName, &req.AccountNumber,
		&req.MerchantID, &req.Attachment, &req.Status, &req.RejectNote,
		&req.ProcessedBy, &req.CreatedAt, &req.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DepositRequest{}, s.classifyDepositConflict(ctx, input.RequestID)
		}
		return DepositRequest{}, err
	}

	bonus := reward.DepositBonus(req.Amount)
	credit := req.Amount.Add(bonus)

	// Only an approval pays the bonus; the rejection audit row logs the
	// requested amount alone.
	logAmount := req.Amount
	if status == StatusApproved {
		logAmount = credit
	}
	log := Transaction{
		MemberID:    req.MemberID,
		Amount:      logAmount,
		Description: depositLogDescription(status, input.Note, bonus),
		Details:     fmt.Sprintf("Account Name: %s, Account Number: %s", req.AccountName, req.AccountNumber),
	}
	if status == StatusRejected {
		// The receipt stays on the audit row when a deposit is turned down.
		log.Attachment = req.Attachment
	}
	if err := insertTransaction(ctx, tx, log); err != nil {
		return DepositRequest{}, err
	}

	if status == StatusApproved {
		if err := creditEarnings(ctx, tx, req.MemberID, wallet.TierOlympusWallet, credit); err != nil {
			return DepositRequest{}, err
		}
		if err := s.runUplineMilestone(ctx, tx, req.MemberID, now); err != nil {
			return DepositRequest{}, err
		}
		if err := settleMerchantFloat(ctx, tx, input.ProcessorID, input.ProcessorRole, req.Amount); err != nil {
			return DepositRequest{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return DepositRequest{}, err
	}
	return req, nil
}

// classifyDepositConflict distinguishes a missing request from one that
// lost the processing race.
func (s *Store) classifyDepositConflict(ctx context.Context, requestID string) error {
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT status FROM deposit_requests WHERE id = $1
	`, requestID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrAlreadyProcessed
}

func depositLogDescription(status, note string, bonus decimal.Decimal) string {
	desc := "Deposit Rejected"
	if status == StatusApproved {
		desc = "Deposit Approved"
	}
	if note != "" {
		desc += fmt.Sprintf(" (%s)", note)
	}
	if bonus.IsPositive() && status == StatusApproved {
		desc += fmt.Sprintf(" + Bonus %s", bonus.StringFixed(2))
	}
	return desc
}

// runUplineMilestone grants the depositor's direct upline their one-time
// referral milestone spins. Tiers fire in order, each gated on the
// previous tier's persisted flag for the business day.
func (s *Store) runUplineMilestone(ctx context.Context, tx pgx.Tx, memberID string, now time.Time) error {
	ref, ok, err := getReferral(ctx, tx, memberID)
	if err != nil || !ok || ref.UplineID == "" {
		return err
	}
	uplineID := ref.UplineID
	taskDate := now.In(manilaTZ).Format("2006-01-02")

	var flags reward.MilestoneFlags
	err = tx.QueryRow(ctx, `
		INSERT INTO daily_milestones (member_id, task_date)
		VALUES ($1, $2)
		ON CONFLICT (member_id, task_date) DO UPDATE SET task_date = EXCLUDED.task_date
		RETURNING three_referrals, ten_referrals, twenty_five_referrals, fifty_referrals, one_hundred_referrals
	`, uplineID, taskDate).Scan(&flags.Three, &flags.Ten, &flags.TwentyFive, &flags.Fifty, &flags.OneHundred)
	if err != nil {
		return err
	}

	var directCount int64
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM referrals WHERE upline_id = $1
	`, uplineID).Scan(&directCount)
	if err != nil {
		return err
	}

	spins, updated := reward.Milestone(directCount, flags)
	if spins == 0 {
		return nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE daily_milestones
		SET three_referrals = $3, ten_referrals = $4, twenty_five_referrals = $5,
		    fifty_referrals = $6, one_hundred_referrals = $7, updated_at = $8
		WHERE member_id = $1 AND task_date = $2
	`, uplineID, taskDate, updated.Three, updated.Ten, updated.TwentyFive, updated.Fifty, updated.OneHundred, now)
	if err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, Transaction{
		MemberID:    uplineID,
		Description: fmt.Sprintf("Daily task + %d spins", spins),
	}); err != nil {
		return err
	}
	return addSpins(ctx, tx, uplineID, spins)
}

// settleMerchantFloat decrements the processor's float when they carry one.
// A processor with the MERCHANT role must have a float row.
func settleMerchantFloat(ctx context.Context, tx pgx.Tx, processorID, processorRole string, amount decimal.Decimal) error {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT balance FROM merchant_balances WHERE member_id = $1 FOR UPDATE
	`, processorID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if processorRole == RoleMerchant {
				return ErrNotFound
			}
			return nil
		}
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientMerchantFloat
	}
	_, err = tx.Exec(ctx, `
		UPDATE merchant_balances SET balance = balance - $2 WHERE member_id = $1
	`, processorID, amount)
	return err
}

func getMemberTx(ctx context.Context, tx pgx.Tx, id string) (Member, error) {
	var m Member
	err := tx.QueryRow(ctx, `
		SELECT id, username, role, is_active, is_restricted, created_at
		FROM members
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Username, &m.Role, &m.IsActive, &m.IsRestricted, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, err
	}
	return m, nil
}
