package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"olympus.fund/internal/store"
)

type createPackageRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Percentage   decimal.Decimal `json:"percentage"`
	MaturityDays int             `json:"maturity_days"`
	Color        string          `json:"color"`
	Image        string          `json:"image"`
}

type updatePackageRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Percentage   decimal.Decimal `json:"percentage"`
	MaturityDays int             `json:"maturity_days"`
	IsDisabled   bool            `json:"is_disabled"`
	Color        string          `json:"color"`
	Image        string          `json:"image"`
}

type packageResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Percentage   decimal.Decimal `json:"percentage"`
	MaturityDays int             `json:"maturity_days"`
	IsDisabled   bool            `json:"is_disabled"`
	Color        string          `json:"color"`
	Image        string          `json:"image"`
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListPackages(w, r)
	case http.MethodPost:
		s.handleCreatePackage(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

func (s *Server) handlePackageByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/packages/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	s.handleUpdatePackage(w, r, id)
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())

	// Disabled packages stay visible to administrators only.
	includeDisabled := caller.Role == store.RoleAdmin

	packages, err := s.store.ListPackages(r.Context(), includeDisabled)
	if err != nil {
		s.fail(w, "package_list", err)
		return
	}

	out := make([]packageResponse, 0, len(packages))
	for _, p := range packages {
		out = append(out, toPackageResponse(p))
	}
	s.ok("package_list")
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, []string{store.RoleAdmin}) {
		return
	}

	var req createPackageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := validatePackage(req.Name, req.Percentage, req.MaturityDays); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	pkg, err := s.store.CreatePackage(r.Context(), store.CreatePackageInput{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Percentage:   req.Percentage,
		MaturityDays: req.MaturityDays,
		Color:        req.Color,
		Image:        req.Image,
	})
	if err != nil {
		s.fail(w, "package_create", err)
		return
	}

	s.ok("package_create")
	s.logger.Info("package created",
		zap.String("package_id", pkg.ID),
		zap.String("name", pkg.Name),
		zap.String("actor_id", caller.ID),
	)
	writeJSON(w, http.StatusCreated, toPackageResponse(pkg))
}

func (s *Server) handleUpdatePackage(w http.ResponseWriter, r *http.Request, id string) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, []string{store.RoleAdmin}) {
		return
	}

	var req updatePackageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := validatePackage(req.Name, req.Percentage, req.MaturityDays); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	pkg, err := s.store.UpdatePackage(r.Context(), store.UpdatePackageInput{
		PackageID:    id,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Percentage:   req.Percentage,
		MaturityDays: req.MaturityDays,
		IsDisabled:   req.IsDisabled,
		Color:        req.Color,
		Image:        req.Image,
	})
	if err != nil {
		s.fail(w, "package_update", err)
		return
	}

	s.ok("package_update")
	s.logger.Info("package updated",
		zap.String("package_id", pkg.ID),
		zap.Bool("is_disabled", pkg.IsDisabled),
		zap.String("actor_id", caller.ID),
	)
	writeJSON(w, http.StatusOK, toPackageResponse(pkg))
}

func validatePackage(name string, percentage decimal.Decimal, maturityDays int) error {
	if strings.TrimSpace(name) == "" {
		return errInvalidField("name")
	}
	if !percentage.IsPositive() {
		return errInvalidField("percentage")
	}
	if maturityDays <= 0 {
		return errInvalidField("maturity_days")
	}
	return nil
}

func toPackageResponse(p store.Package) packageResponse {
	return packageResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Percentage:   p.Percentage,
		MaturityDays: p.MaturityDays,
		IsDisabled:   p.IsDisabled,
		Color:        p.Color,
		Image:        p.Image,
	}
}
