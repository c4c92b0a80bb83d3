package store

import (
	"errors"

	"olympus.fund/internal/referral"
	"olympus.fund/internal/wallet"
)

var (
	// The ledger and resolver failures pass through unchanged so callers
	// match a single sentinel.
	ErrInsufficientFunds = wallet.ErrInsufficientFunds
	ErrChainIntegrity    = referral.ErrChainIntegrity

	ErrNotFound                  = errors.New("not found")
	ErrMemberNotFound            = errors.New("member not found")
	ErrPackageDisabled           = errors.New("package is disabled")
	ErrPackageExists             = errors.New("package already exists")
	ErrNotReady                  = errors.New("enrollment is not ready to claim")
	ErrInvalidClaim              = errors.New("claimed totals do not match the enrollment")
	ErrAlreadyClaimed            = errors.New("enrollment already claimed")
	ErrAlreadyProcessed          = errors.New("request already processed")
	ErrPendingDepositExists      = errors.New("a pending deposit request already exists")
	ErrInsufficientMerchantFloat = errors.New("insufficient merchant balance")
)
