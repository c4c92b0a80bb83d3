package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"olympus.fund/internal/api"
	"olympus.fund/internal/auth"
	"olympus.fund/internal/metrics"
	"olympus.fund/internal/ratelimit"
	"olympus.fund/internal/store"
)

type testEnv struct {
	pool   *pgxpool.Pool
	server *httptest.Server
	client *http.Client
	secret []byte
	store  *store.Store
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db connection: %v", err)
	}

	applySchema(t, pool)
	resetDB(t, pool)

	secret := []byte("test-secret")
	st := store.New(pool)
	srv := api.NewServer(st, auth.NewResolver(secret, st), ratelimit.Unlimited{}, metrics.New(nil), zap.NewNop())
	ts := httptest.NewServer(srv.Routes())

	return &testEnv{
		pool:   pool,
		server: ts,
		client: &http.Client{Timeout: 3 * time.Second},
		secret: secret,
		store:  st,
	}
}

func (e *testEnv) close() {
	e.server.Close()
	e.pool.Close()
}

func (e *testEnv) doRequest(t *testing.T, memberID, method, path, body string) *http.Response {
	t.Helper()

	token, err := auth.Sign(e.secret, memberID)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func seedMember(t *testing.T, pool *pgxpool.Pool, id, role string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx,
		"INSERT INTO members (id, username, role, is_active) VALUES ($1, $1, $2, TRUE)",
		id, role,
	)
	if err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

func seedReferral(t *testing.T, pool *pgxpool.Pool, memberID, uplineID string, ancestry []string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var upline any
	if uplineID != "" {
		upline = uplineID
	}
	_, err := pool.Exec(ctx,
		"INSERT INTO referrals (member_id, upline_id, ancestry) VALUES ($1, $2, $3)",
		memberID, upline, ancestry,
	)
	if err != nil {
		t.Fatalf("seed referral: %v", err)
	}
}

func seedEarnings(t *testing.T, pool *pgxpool.Pool, memberID, wallet, earnings, bounty, winning string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w := decimal.RequireFromString(wallet)
	e := decimal.RequireFromString(earnings)
	b := decimal.RequireFromString(bounty)
	win := decimal.RequireFromString(winning)
	combined := w.Add(e).Add(b).Add(win)

	_, err := pool.Exec(ctx,
		`INSERT INTO earnings (member_id, combined, olympus_wallet, olympus_earnings, referral_bounty, winning_earnings)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		memberID, combined, w, e, b, win,
	)
	if err != nil {
		t.Fatalf("seed earnings: %v", err)
	}
}

func seedPackage(t *testing.T, pool *pgxpool.Pool, id, name, percentage string, maturityDays int, disabled bool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx,
		"INSERT INTO packages (id, name, percentage, maturity_days, is_disabled) VALUES ($1, $2, $3, $4, $5)",
		id, name, decimal.RequireFromString(percentage), maturityDays, disabled,
	)
	if err != nil {
		t.Fatalf("seed package: %v", err)
	}
}

func seedEnrollment(t *testing.T, pool *pgxpool.Pool, id, memberID, packageID, amount, earningsAmount string, ready bool, createdAt, completionAt time.Time) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx,
		`INSERT INTO package_enrollments (id, member_id, package_id, amount, earnings_amount, status, is_ready_to_claim, created_at, completion_at)
		 VALUES ($1, $2, $3, $4, $5, 'ACTIVE', $6, $7, $8)`,
		id, memberID, packageID,
		decimal.RequireFromString(amount), decimal.RequireFromString(earningsAmount),
		ready, createdAt, completionAt,
	)
	if err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}
}

func seedMerchantFloat(t *testing.T, pool *pgxpool.Pool, memberID, balance string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx,
		"INSERT INTO merchant_balances (member_id, balance) VALUES ($1, $2)",
		memberID, decimal.RequireFromString(balance),
	)
	if err != nil {
		t.Fatalf("seed merchant float: %v", err)
	}
}

type earningsRow struct {
	Combined        decimal.Decimal
	OlympusWallet   decimal.Decimal
	OlympusEarnings decimal.Decimal
	ReferralBounty  decimal.Decimal
	WinningEarnings decimal.Decimal
}

func getEarnings(t *testing.T, pool *pgxpool.Pool, memberID string) earningsRow {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var row earningsRow
	err := pool.QueryRow(ctx,
		`SELECT combined, olympus_wallet, olympus_earnings, referral_bounty, winning_earnings
		 FROM earnings WHERE member_id = $1`,
		memberID,
	).Scan(&row.Combined, &row.OlympusWallet, &row.OlympusEarnings, &row.ReferralBounty, &row.WinningEarnings)
	if err != nil {
		t.Fatalf("get earnings: %v", err)
	}
	return row
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	if err := pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return count
}

func getSpins(t *testing.T, pool *pgxpool.Pool, memberID string) int64 {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var spins int64
	err := pool.QueryRow(ctx, "SELECT spin_count FROM wheel_spins WHERE member_id = $1", memberID).Scan(&spins)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0
		}
		t.Fatalf("get spins: %v", err)
	}
	return spins
}

func assertAmount(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()

	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("expected %s %s, got %s", label, want, got)
	}
}

func applySchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	schema := loadSchema(t)
	statements := strings.Split(schema, ";")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, stmt := range statements {
		s := strings.TrimSpace(stmt)
		if s == "" {
			continue
		}
		if _, err := pool.Exec(ctx, s); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx,
		`TRUNCATE daily_milestones, wheel_spins, earnings_snapshots, merchant_balances,
		 withdrawal_requests, deposit_requests, transactions, bounty_events,
		 package_enrollments, packages, referrals, earnings, members CASCADE`,
	)
	if err != nil {
		t.Fatalf("reset db: %v", err)
	}
}

func loadSchema(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := wd
	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, "schema.sql")
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read schema: %v", err)
			}
			return string(data)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	t.Fatalf("schema.sql not found from %s", wd)
	return ""
}
