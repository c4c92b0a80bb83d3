package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"olympus.fund/internal/store"
)

type createDepositRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	AccountName   string          `json:"account_name"`
	AccountNumber string          `json:"account_number"`
	MerchantID    string          `json:"merchant_id"`
	Attachment    string          `json:"attachment"`
}

type processRequest struct {
	Note string `json:"note"`
}

type depositResponse struct {
	ID            string          `json:"id"`
	MemberID      string          `json:"member_id"`
	Amount        decimal.Decimal `json:"amount"`
	AccountName   string          `json:"account_name"`
	AccountNumber string          `json:"account_number"`
	MerchantID    string          `json:"merchant_id"`
	Status        string          `json:"status"`
	RejectNote    string          `json:"reject_note,omitempty"`
	ProcessedBy   string          `json:"processed_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

func (s *Server) handleDeposits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	s.handleCreateDeposit(w, r)
}

func (s *Server) handleDepositAction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/deposits/")
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
		s.handleProcessDeposit(w, r, parts[0], true)
	case "reject":
		s.handleProcessDeposit(w, r, parts[0], false)
	default:
		writeError(w, http.StatusNotFound, "not_found")
	}
}

func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, memberRoles) {
		return
	}
	if !s.allow(r, "deposit:"+caller.ID, 5, time.Minute) {
		writeError(w, http.StatusTooManyRequests, "rate_limited")
		return
	}

	var req createDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := validateCreateDeposit(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	deposit, err := s.store.CreateDeposit(r.Context(), store.CreateDepositInput{
		MemberID:      caller.ID,
		Amount:        req.Amount,
		AccountName:   strings.TrimSpace(req.AccountName),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		MerchantID:    req.MerchantID,
		Attachment:    req.Attachment,
	})
	if err != nil {
		s.fail(w, "deposit_create", err)
		return
	}

	s.ok("deposit_create")
	s.logger.Info("deposit requested",
		zap.String("request_id", deposit.ID),
		zap.String("member_id", deposit.MemberID),
		zap.String("merchant_id", deposit.MerchantID),
		zap.String("amount", deposit.Amount.String()),
	)
	writeJSON(w, http.StatusCreated, toDepositResponse(deposit))
}

func (s *Server) handleProcessDeposit(w http.ResponseWriter, r *http.Request, id string, approve bool) {
	caller := callerFromContext(r.Context())
	if !s.requireRole(w, caller, depositRoles) {
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

	deposit, err := s.store.ProcessDeposit(r.Context(), store.ProcessDepositInput{
		RequestID:     id,
		ProcessorID:   caller.ID,
		ProcessorRole: caller.Role,
		Approve:       approve,
		Note:          strings.TrimSpace(req.Note),
	})
	if err != nil {
		s.fail(w, "deposit_process", err)
		return
	}

	s.ok("deposit_process")
	s.logger.Info("deposit processed",
		zap.String("request_id", deposit.ID),
		zap.String("member_id", deposit.MemberID),
		zap.String("status", deposit.Status),
		zap.String("actor_id", caller.ID),
	)
	writeJSON(w, http.StatusOK, toDepositResponse(deposit))
}

func validateCreateDeposit(req createDepositRequest) error {
	if !req.Amount.IsPositive() {
		return errInvalidField("amount")
	}
	if strings.TrimSpace(req.AccountName) == "" {
		return errInvalidField("account_name")
	}
	if strings.TrimSpace(req.AccountNumber) == "" {
		return errInvalidField("account_number")
	}
	if req.MerchantID == "" {
		return errInvalidField("merchant_id")
	}
	return nil
}

func toDepositResponse(d store.DepositRequest) depositResponse {
	return depositResponse{
		ID:            d.ID,
		MemberID:      d.MemberID,
		Amount:        d.Amount,
		AccountName:   d.AccountName,
		AccountNumber: d.AccountNumber,
		MerchantID:    d.MerchantID,
		Status:        d.Status,
		RejectNote:    d.RejectNote,
		ProcessedBy:   d.ProcessedBy,
		CreatedAt:     d.CreatedAt,
		ProcessedAt:   d.ProcessedAt,
	}
}
