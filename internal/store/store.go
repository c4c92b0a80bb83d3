// Package store is the transactional core of the platform. Every
// state-changing operation runs inside a single Postgres transaction:
// earnings rows are read under FOR UPDATE for the duration of a deduction,
// terminal state transitions use conditional updates, and every balance
// mutation pairs with a transaction log row.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"olympus.fund/internal/wallet"
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// WithClock overrides the store's clock. Used by maturity tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) GetMember(ctx context.Context, id string) (Member, error) {
	var m Member
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, role, is_active, is_restricted, created_at
		FROM members
		WHERE id = $1
	`, id).Scan(
		&m.ID,
		&m.Username,
		&m.Role,
		&m.IsActive,
		&m.IsRestricted,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrMemberNotFound
		}
		return Member{}, err
	}
	return m, nil
}

func (s *Store) GetEarnings(ctx context.Context, memberID string) (Earnings, error) {
	var e Earnings
	err := s.pool.QueryRow(ctx, `
		SELECT member_id, combined, olympus_wallet, olympus_earnings, referral_bounty, winning_earnings
		FROM earnings
		WHERE member_id = $1
	`, memberID).Scan(
		&e.MemberID,
		&e.Combined,
		&e.OlympusWallet,
		&e.OlympusEarnings,
		&e.ReferralBounty,
		&e.WinningEarnings,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Earnings{}, ErrNotFound
		}
		return Earnings{}, err
	}
	return e, nil
}

// lockEarnings reads a member's ledger row with a row lock held until the
// surrounding transaction ends. Every deduction goes through this.
func lockEarnings(ctx context.Context, tx pgx.Tx, memberID string) (wallet.Balances, error) {
	var b wallet.Balances
	err := tx.QueryRow(ctx, `
		SELECT combined, olympus_wallet, olympus_earnings, referral_bounty, winning_earnings
		FROM earnings
		WHERE member_id = $1
		FOR UPDATE
	`, memberID).Scan(
		&b.Combined,
		&b.OlympusWallet,
		&b.OlympusEarnings,
		&b.ReferralBounty,
		&b.WinningEarnings,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wallet.Balances{}, ErrNotFound
		}
		return wallet.Balances{}, err
	}
	return b, nil
}

// writeEarnings writes the five balances back, fixed to two fractional
// digits. Callers hold the row lock from lockEarnings.
func writeEarnings(ctx context.Context, tx pgx.Tx, memberID string, b wallet.Balances) error {
	_, err := tx.Exec(ctx, `
		UPDATE earnings
		SET combined = $2,
		    olympus_wallet = $3,
		    olympus_earnings = $4,
		    referral_bounty = $5,
		    winning_earnings = $6
		WHERE member_id = $1
	`,
		memberID,
		b.Combined.Round(2),
		b.OlympusWallet.Round(2),
		b.OlympusEarnings.Round(2),
		b.ReferralBounty.Round(2),
		b.WinningEarnings.Round(2),
	)
	return err
}

var tierColumns = map[wallet.Tier]string{
	wallet.TierOlympusWallet:   "olympus_wallet",
	wallet.TierOlympusEarnings: "olympus_earnings",
	wallet.TierReferralBounty:  "referral_bounty",
	wallet.TierWinningEarnings: "winning_earnings",
}

// creditStmt builds the upsert that raises one tier and the combined
// balance together, creating the earnings row on first credit.
func creditStmt(tier wallet.Tier) string {
	col := tierColumns[tier]
	return `
		INSERT INTO earnings (member_id, combined, ` + col + `)
		VALUES ($1, $2, $2)
		ON CONFLICT (member_id) DO UPDATE
		SET combined = earnings.combined + EXCLUDED.combined,
		    ` + col + ` = earnings.` + col + ` + EXCLUDED.` + col
}

func creditEarnings(ctx context.Context, tx pgx.Tx, memberID string, tier wallet.Tier, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx, creditStmt(tier), memberID, amount.Round(2))
	return err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, log Transaction) error {
	id := log.ID
	if id == "" {
		id = uuid.NewString()
	}
	var attachment *string
	if log.Attachment != "" {
		attachment = &log.Attachment
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, member_id, amount, description, details, attachment)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, log.MemberID, log.Amount.Round(2), log.Description, log.Details, attachment)
	return err
}

func addSpins(ctx context.Context, tx pgx.Tx, memberID string, count int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO wheel_spins (member_id, spin_count)
		VALUES ($1, $2)
		ON CONFLICT (member_id) DO UPDATE
		SET spin_count = wheel_spins.spin_count + EXCLUDED.spin_count
	`, memberID, count)
	return err
}

func getReferral(ctx context.Context, tx pgx.Tx, memberID string) (Referral, bool, error) {
	var r Referral
	var upline *string
	err := tx.QueryRow(ctx, `
		SELECT member_id, upline_id, ancestry
		FROM referrals
		WHERE member_id = $1
	`, memberID).Scan(&r.MemberID, &upline, &r.Ancestry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Referral{}, false, nil
		}
		return Referral{}, false, err
	}
	if upline != nil {
		r.UplineID = *upline
	}
	return r, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
