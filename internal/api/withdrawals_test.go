package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"olympus.fund/internal/store"
)

func createWithdrawal(t *testing.T, env *testEnv, memberID, body string) string {
	t.Helper()

	resp := env.doRequest(t, memberID, http.MethodPost, "/v1/withdrawals", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return created.ID
}

func TestCreateWithdrawalDebitsCategoryWallet(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "nora", store.RoleMember)
	seedEarnings(t, env.pool, "nora", "0", "0", "1000", "0")

	resp := env.doRequest(t, "nora", http.MethodPost, "/v1/withdrawals",
		`{"category":"REFERRAL","amount":"200","bank_name":"BDO","account_number":"001"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected %d, got %d", http.StatusCreated, resp.StatusCode)
	}

	var got struct {
		GrossAmount string `json:"gross_amount"`
		Fee         string `json:"fee"`
		NetAmount   string `json:"net_amount"`
		Status      string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.GrossAmount != "200" || got.Fee != "20" || got.NetAmount != "180" {
		t.Fatalf("unexpected amounts: gross %s fee %s net %s", got.GrossAmount, got.Fee, got.NetAmount)
	}
	if got.Status != store.StatusPending {
		t.Fatalf("expected status %s, got %s", store.StatusPending, got.Status)
	}

	row := getEarnings(t, env.pool, "nora")
	assertAmount(t, row.ReferralBounty, "800", "referral_bounty")
	assertAmount(t, row.Combined, "800", "combined")
}

func TestCreateWithdrawalInsufficientCategoryBalance(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "nora", store.RoleMember)
	seedEarnings(t, env.pool, "nora", "500", "0", "100", "0")

	resp := env.doRequest(t, "nora", http.MethodPost, "/v1/withdrawals",
		`{"category":"REFERRAL","amount":"200","bank_name":"BDO","account_number":"001"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected %d, got %d", http.StatusUnprocessableEntity, resp.StatusCode)
	}

	row := getEarnings(t, env.pool, "nora")
	assertAmount(t, row.Combined, "600", "combined")

	requests := countRows(t, env.pool, "SELECT COUNT(*) FROM withdrawal_requests WHERE member_id = 'nora'")
	if requests != 0 {
		t.Fatalf("expected 0 requests, got %d", requests)
	}
}

func TestWithdrawalRejectRefundsGross(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "nora", store.RoleMember)
	seedMember(t, env.pool, "audit", store.RoleAccounting)
	seedEarnings(t, env.pool, "nora", "0", "0", "1000", "0")

	id := createWithdrawal(t, env, "nora",
		`{"category":"REFERRAL","amount":"200","bank_name":"BDO","account_number":"001"}`)

	resp := env.doRequest(t, "audit", http.MethodPost, "/v1/withdrawals/"+id+"/reject", `{"note":"name mismatch"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	row := getEarnings(t, env.pool, "nora")
	assertAmount(t, row.ReferralBounty, "1000", "referral_bounty")
	assertAmount(t, row.Combined, "1000", "combined")

	rejected := countRows(t, env.pool, "SELECT COUNT(*) FROM withdrawal_requests WHERE id = $1 AND status = $2", id, store.StatusRejected)
	if rejected != 1 {
		t.Fatal("expected request rejected")
	}
}

func TestWithdrawalApproveKeepsDebit(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "nora", store.RoleMember)
	seedMember(t, env.pool, "audit", store.RoleAccountingHead)
	seedEarnings(t, env.pool, "nora", "0", "0", "1000", "0")

	id := createWithdrawal(t, env, "nora",
		`{"category":"REFERRAL","amount":"200","bank_name":"BDO","account_number":"001"}`)

	resp := env.doRequest(t, "audit", http.MethodPost, "/v1/withdrawals/"+id+"/approve", `{}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	row := getEarnings(t, env.pool, "nora")
	assertAmount(t, row.ReferralBounty, "800", "referral_bounty")

	approved := countRows(t, env.pool, "SELECT COUNT(*) FROM withdrawal_requests WHERE id = $1 AND status = $2", id, store.StatusApproved)
	if approved != 1 {
		t.Fatal("expected request approved")
	}
}

func TestWithdrawalProcessTwiceConflicts(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "nora", store.RoleMember)
	seedMember(t, env.pool, "audit", store.RoleAccounting)
	seedEarnings(t, env.pool, "nora", "0", "0", "1000", "0")

	id := createWithdrawal(t, env, "nora",
		`{"category":"REFERRAL","amount":"200","bank_name":"BDO","account_number":"001"}`)

	first := env.doRequest(t, "audit", http.MethodPost, "/v1/withdrawals/"+id+"/approve", `{}`)
	first.Body.Close()

	second := env.doRequest(t, "audit", http.MethodPost, "/v1/withdrawals/"+id+"/reject", `{"note":"late"}`)
	defer second.Body.Close()

	if second.StatusCode != http.StatusConflict {
		t.Fatalf("expected %d, got %d", http.StatusConflict, second.StatusCode)
	}
}

func TestWithdrawalInvalidCategory(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "nora", store.RoleMember)

	resp := env.doRequest(t, "nora", http.MethodPost, "/v1/withdrawals",
		`{"category":"BONUS","amount":"200","bank_name":"BDO","account_number":"001"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestWithdrawalProcessRequiresAccountingRole(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "nora", store.RoleMember)
	seedEarnings(t, env.pool, "nora", "0", "0", "1000", "0")

	id := createWithdrawal(t, env, "nora",
		`{"category":"REFERRAL","amount":"200","bank_name":"BDO","account_number":"001"}`)

	resp := env.doRequest(t, "nora", http.MethodPost, "/v1/withdrawals/"+id+"/approve", `{}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected %d, got %d", http.StatusForbidden, resp.StatusCode)
	}
}
