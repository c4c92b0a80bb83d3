package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"olympus.fund/internal/wallet"
)

// withdrawalFeeRate is the flat fee taken off every withdrawal.
var withdrawalFeeRate = decimal.RequireFromString("0.10")

var categoryTiers = map[string]wallet.Tier{
	CategoryPackage:  wallet.TierOlympusEarnings,
	CategoryReferral: wallet.TierReferralBounty,
	CategoryWinning:  wallet.TierWinningEarnings,
}

// CategoryTier maps a withdrawal category to the sub-wallet it draws from.
func CategoryTier(category string) (wallet.Tier, bool) {
	tier, ok := categoryTiers[category]
	return tier, ok
}

// CreateWithdrawal debits the gross amount from the chosen category under
// the row lock and opens a PENDING request for the net payout. The 10% fee
// is kept out of the net but the member gives up the gross immediately.
func (s *Store) CreateWithdrawal(ctx context.Context, input CreateWithdrawalInput) (WithdrawalRequest, error) {
	tier, ok := CategoryTier(input.Category)
	if !ok {
		return WithdrawalRequest{}, ErrNotFound
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return WithdrawalRequest{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	balances, err := lockEarnings(ctx, tx, input.MemberID)
	if err != nil {
		return WithdrawalRequest{}, err
	}

	gross := input.Amount.Round(2)
	fee := gross.Mul(withdrawalFeeRate).Round(2)
	net := gross.Sub(fee)

	debited, err := balances.DebitTier(tier, gross)
	if err != nil {
		return WithdrawalRequest{}, err
	}
	if err := writeEarnings(ctx, tx, input.MemberID, debited); err != nil {
		return WithdrawalRequest{}, err
	}

	req := WithdrawalRequest{
		ID:            uuid.NewString(),
		MemberID:      input.MemberID,
		Category:      input.Category,
		GrossAmount:   gross,
		Fee:           fee,
		NetAmount:     net,
		BankName:      input.BankName,
		AccountNumber: input.AccountNumber,
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO withdrawal_requests
			(id, member_id, category, gross_amount, fee, net_amount, bank_name, account_number, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		req.ID, req.MemberID, req.Category, req.GrossAmount, req.Fee, req.NetAmount,
		req.BankName, req.AccountNumber, req.Status, req.CreatedAt,
	)
	if err != nil {
		return WithdrawalRequest{}, err
	}

	if err := insertTransaction(ctx, tx, Transaction{
		MemberID:    input.MemberID,
		Amount:      gross.Neg(),
		Description: fmt.Sprintf("Withdrawal Pending: %s", input.Category),
		Details:     fmt.Sprintf("Bank: %s, Account Number: %s", input.BankName, input.AccountNumber),
	}); err != nil {
		return WithdrawalRequest{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return WithdrawalRequest{}, err
	}
	return req, nil
}

// ProcessWithdrawal moves a PENDING request to its terminal state.
// Rejection refunds the gross back to the category it was drawn from.
func (s *Store) ProcessWithdrawal(ctx context.Context, input ProcessWithdrawalInput) (WithdrawalRequest, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return WithdrawalRequest{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	status := StatusRejected
	if input.Approve {
		status = StatusApproved
	}

	var req WithdrawalRequest
	err = tx.QueryRow(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, processed_by = $3, reject_note = $4, processed_at = $5
		WHERE id = $1 AND status = $6
		RETURNING id, member_id, category, gross_amount, fee, net_amount,
		          bank_name, account_number, status, reject_note, processed_by, created_at, processed_at
	`, input.RequestID, status, input.ProcessorID, input.Note, s.now(), StatusPending).Scan(
		&req.ID, &req.MemberID, &req.Category, &req.GrossAmount, &req.Fee, &req.NetAmount,
		&req.BankName, &req.AccountNumber, &req.Status, &req.RejectNote,
		&req.ProcessedBy, &req.CreatedAt, &req.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WithdrawalRequest{}, s.classifyWithdrawalConflict(ctx, input.RequestID)
		}
		return WithdrawalRequest{}, err
	}

	if status == StatusRejected {
		tier, _ := CategoryTier(req.Category)
		if err := creditEarnings(ctx, tx, req.MemberID, tier, req.GrossAmount); err != nil {
			return WithdrawalRequest{}, err
		}
	}

	description := fmt.Sprintf("Withdrawal Rejected: %s", req.Category)
	amount := req.GrossAmount
	if status == StatusApproved {
		description = fmt.Sprintf("Withdrawal Approved: %s", req.Category)
		amount = req.NetAmount
	}
	if input.Note != "" {
		description += fmt.Sprintf(" (%s)", input.Note)
	}
	if err := insertTransaction(ctx, tx, Transaction{
		MemberID:    req.MemberID,
		Amount:      amount,
		Description: description,
	}); err != nil {
		return WithdrawalRequest{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return WithdrawalRequest{}, err
	}
	return req, nil
}

func (s *Store) classifyWithdrawalConflict(ctx context.Context, requestID string) error {
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT status FROM withdrawal_requests WHERE id = $1
	`, requestID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrAlreadyProcessed
}
