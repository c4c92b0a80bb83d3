package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"olympus.fund/internal/store"
)

type createWithdrawalRequest struct {
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	BankName      string          `json:"bank_name"`
	AccountNumber string          `json:"account_number"`
}

type withdrawalResponse struct {
	ID            string          `json:"id"`
	MemberID      string          `json:"member_id"`
	Category      string          `json:"category"`
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	Fee           decimal.Decimal `json:"fee"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	BankName      string          `json:"bank_name"`
	AccountNumber string          `json:"account_number"`
	Status        string          `json:"status"`
	RejectNote    string          `json:"reject_note,omitempty"`
	ProcessedBy   string          `json:"processed_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

func (s *Server) handleWithdrawals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	s.handleCreateWithdrawal(w, r)
}

func (s *Server) handleWithdrawalAction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/withdrawals/")
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
	case "approve":
		s.handleProcessWithdrawal(w, r, parts[0], true)
	case "reject":
		s.handleProcessWithdrawal(w, r, parts[0], false)
	default:
		writeError(w, http.StatusNotFound, "not_found")
	}
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, memberRoles) {
		return
	}
	if !s.allow(r, "withdraw:"+caller.ID, 5, time.Minute) {
		writeError(w, http.StatusTooManyRequests, "rate_limited")
		return
	}

	var req createWithdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := validateCreateWithdrawal(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	withdrawal, err := s.store.CreateWithdrawal(r.Context(), store.CreateWithdrawalInput{
		MemberID:      caller.ID,
		Category:      req.Category,
		Amount:        req.Amount,
		BankName:      strings.TrimSpace(req.BankName),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
	})
	if err != nil {
		s.fail(w, "withdrawal_create", err)
		return
	}

	s.ok("withdrawal_create")
	s.logger.Info("withdrawal requested",
		zap.String("request_id", withdrawal.ID),
		zap.String("member_id", withdrawal.MemberID),
		zap.String("category", withdrawal.Category),
		zap.String("gross_amount", withdrawal.GrossAmount.String()),
		zap.String("net_amount", withdrawal.NetAmount.String()),
	)
	writeJSON(w, http.StatusCreated, toWithdrawalResponse(withdrawal))
}

func (s *Server) handleProcessWithdrawal(w http.ResponseWriter, r *http.Request, id string, approve bool) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, accountingRoles) {
		return
	}

	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !approve && strings.TrimSpace(req.Note) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	withdrawal, err := s.store.ProcessWithdrawal(r.Context(), store.ProcessWithdrawalInput{
		RequestID:   id,
		ProcessorID: caller.ID,
		Approve:     approve,
		Note:        strings.TrimSpace(req.Note),
	})
	if err != nil {
		s.fail(w, "withdrawal_process", err)
		return
	}

	s.ok("withdrawal_process")
	s.logger.Info("withdrawal processed",
		zap.String("request_id", withdrawal.ID),
		zap.String("member_id", withdrawal.MemberID),
		zap.String("status", withdrawal.Status),
		zap.String("actor_id", caller.ID),
	)
	writeJSON(w, http.StatusOK, toWithdrawalResponse(withdrawal))
}

func validateCreateWithdrawal(req createWithdrawalRequest) error {
	switch req.Category {
	case store.CategoryPackage, store.CategoryReferral, store.CategoryWinning:
	default:
		return errInvalidField("category")
	}
	if !req.Amount.IsPositive() {
		return errInvalidField("amount")
	}
	if strings.TrimSpace(req.BankName) == "" {
		return errInvalidField("bank_name")
	}
	if strings.TrimSpace(req.AccountNumber) == "" {
		return errInvalidField("account_number")
	}
	return nil
}

func toWithdrawalResponse(w store.WithdrawalRequest) withdrawalResponse {
	return withdrawalResponse{
		ID:            w.ID,
		MemberID:      w.MemberID,
		Category:      w.Category,
		GrossAmount:   w.GrossAmount,
		Fee:           w.Fee,
		NetAmount:     w.NetAmount,
		BankName:      w.BankName,
		AccountNumber: w.AccountNumber,
		Status:        w.Status,
		RejectNote:    w.RejectNote,
		ProcessedBy:   w.ProcessedBy,
		CreatedAt:     w.CreatedAt,
		ProcessedAt:   w.ProcessedAt,
	}
}
