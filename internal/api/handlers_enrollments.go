package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"olympus.fund/internal/store"
)

type enrollRequest struct {
	PackageID string          `json:"package_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type claimRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Earnings decimal.Decimal `json:"earnings"`
}

type reinvestRequest struct {
	PackageID string          `json:"package_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type enrollmentResponse struct {
	ID             string          `json:"id"`
	MemberID       string          `json:"member_id"`
	PackageID      string          `json:"package_id"`
	Amount         decimal.Decimal `json:"amount"`
	EarningsAmount decimal.Decimal `json:"earnings_amount"`
	Status         string          `json:"status"`
	IsReadyToClaim bool            `json:"is_ready_to_claim"`
	IsReinvestment bool            `json:"is_reinvestment"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletionAt   *time.Time      `json:"completion_at,omitempty"`
}

type enrollmentProgressResponse struct {
	enrollmentResponse
	PackageName       string          `json:"package_name"`
	PackageColor      string          `json:"package_color"`
	PackageDays       int             `json:"package_days"`
	PackagePercentage decimal.Decimal `json:"package_percentage"`
	Completion        decimal.Decimal `json:"completion"`
	CurrentAmount     decimal.Decimal `json:"current_amount"`
}

func (s *Server) handleEnrollments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleEnroll(w, r)
	case http.MethodGet:
		s.handleActiveEnrollments(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

func (s *Server) handleEnrollmentAction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/enrollments/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	switch parts[1] {
	case "claim":
		s.handleClaim(w, r, parts[0])
	case "reinvest":
		s.handleReinvest(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not_found")
	}
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, memberRoles) {
		return
	}
	if !s.allow(r, "enroll:"+caller.ID, 10, time.Minute) {
		writeError(w, http.StatusTooManyRequests, "rate_limited")
		return
	}

	var req enrollRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.PackageID == "" || !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	enrollment, err := s.store.EnrollPackage(r.Context(), store.EnrollPackageInput{
		MemberID:  caller.ID,
		PackageID: req.PackageID,
		Amount:    req.Amount,
	})
	if err != nil {
		s.fail(w, "enroll", err)
		return
	}

	s.ok("enroll")
	s.logger.Info("package enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("member_id", enrollment.MemberID),
		zap.String("package_id", enrollment.PackageID),
		zap.String("amount", enrollment.Amount.String()),
	)
	writeJSON(w, http.StatusCreated, toEnrollmentResponse(enrollment))
}

func (s *Server) handleActiveEnrollments(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, memberRoles) {
		return
	}

	progress, err := s.store.ActiveEnrollments(r.Context(), caller.ID)
	if err != nil {
		s.fail(w, "enrollment_list", err)
		return
	}

	out := make([]enrollmentProgressResponse, 0, len(progress))
	for _, p := range progress {
		out = append(out, enrollmentProgressResponse{
			enrollmentResponse: toEnrollmentResponse(p.Enrollment),
			PackageName:        p.PackageName,
			PackageColor:       p.PackageColor,
			PackageDays:        p.PackageDays,
			PackagePercentage:  p.PackagePercentage,
			Completion:         p.Completion,
			CurrentAmount:      p.CurrentAmount,
		})
	}
	s.ok("enrollment_list")
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, enrollmentID string) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, memberRoles) {
		return
	}

	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	err := s.store.Claim(r.Context(), store.ClaimInput{
		MemberID:     caller.ID,
		EnrollmentID: enrollmentID,
		Amount:       req.Amount,
		Earnings:     req.Earnings,
	})
	if err != nil {
		s.fail(w, "claim", err)
		return
	}

	s.ok("claim")
	s.logger.Info("package claimed",
		zap.String("enrollment_id", enrollmentID),
		zap.String("member_id", caller.ID),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReinvest(w http.ResponseWriter, r *http.Request, enrollmentID string) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, memberRoles) {
		return
	}

	var req reinvestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.PackageID == "" || !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	enrollment, err := s.store.Reinvest(r.Context(), store.ReinvestInput{
		MemberID:     caller.ID,
		EnrollmentID: enrollmentID,
		PackageID:    req.PackageID,
		Amount:       req.Amount,
	})
	if err != nil {
		s.fail(w, "reinvest", err)
		return
	}

	s.ok("reinvest")
	s.logger.Info("package reinvested",
		zap.String("source_enrollment_id", enrollmentID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("member_id", caller.ID),
		zap.String("amount", enrollment.Amount.String()),
	)
	writeJSON(w, http.StatusCreated, toEnrollmentResponse(enrollment))
}

func toEnrollmentResponse(e store.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:             e.ID,
		MemberID:       e.MemberID,
		PackageID:      e.PackageID,
		Amount:         e.Amount,
		EarningsAmount: e.EarningsAmount,
		Status:         e.Status,
		IsReadyToClaim: e.IsReadyToClaim,
		IsReinvestment: e.IsReinvestment,
		CreatedAt:      e.CreatedAt,
		CompletionAt:   e.CompletionAt,
	}
}
