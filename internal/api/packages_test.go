package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"olympus.fund/internal/store"
)

func TestCreatePackageRequiresAdmin(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "olga", store.RoleMember)

	resp := env.doRequest(t, "olga", http.MethodPost, "/v1/packages",
		`{"name":"Starter","percentage":"10","maturity_days":30}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected %d, got %d", http.StatusForbidden, resp.StatusCode)
	}
}

func TestCreateAndUpdatePackage(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "root", store.RoleAdmin)

	resp := env.doRequest(t, "root", http.MethodPost, "/v1/packages",
		`{"name":"Starter","description":"entry tier","percentage":"10","maturity_days":30,"color":"#112233"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected %d, got %d", http.StatusCreated, resp.StatusCode)
	}

	var created struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Name != "Starter" || created.Color != "#112233" {
		t.Fatalf("unexpected package: %+v", created)
	}

	update := env.doRequest(t, "root", http.MethodPut, "/v1/packages/"+created.ID,
		`{"name":"Starter","description":"entry tier","percentage":"12","maturity_days":30,"is_disabled":true,"color":"#112233"}`)
	defer update.Body.Close()

	if update.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, update.StatusCode)
	}

	var updated struct {
		Percentage string `json:"percentage"`
		IsDisabled bool   `json:"is_disabled"`
	}
	if err := json.NewDecoder(update.Body).Decode(&updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Percentage != "12" || !updated.IsDisabled {
		t.Fatalf("unexpected update: %+v", updated)
	}
}

func TestCreatePackageDuplicateName(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "root", store.RoleAdmin)
	seedPackage(t, env.pool, "pkg-1", "Starter", "10", 30, false)

	resp := env.doRequest(t, "root", http.MethodPost, "/v1/packages",
		`{"name":"Starter","percentage":"10","maturity_days":30}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected %d, got %d", http.StatusConflict, resp.StatusCode)
	}
}

func TestListPackagesHidesDisabledFromMembers(t *testing.T) {
	env := setupTest(t)
	defer env.close()

	seedMember(t, env.pool, "olga", store.RoleMember)
	seedMember(t, env.pool, "root", store.RoleAdmin)
	seedPackage(t, env.pool, "pkg-1", "Starter", "10", 30, false)
	seedPackage(t, env.pool, "pkg-2", "Legacy", "8", 30, true)

	listFor := func(memberID string) []struct {
		ID string `json:"id"`
	} {
		resp := env.doRequest(t, memberID, http.MethodGet, "/v1/packages", "")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
		}
		var list []struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return list
	}

	if got := listFor("olga"); len(got) != 1 || got[0].ID != "pkg-1" {
		t.Fatalf("expected member to see only pkg-1, got %+v", got)
	}
	if got := listFor("root"); len(got) != 2 {
		t.Fatalf("expected admin to see 2 packages, got %d", len(got))
	}
}
