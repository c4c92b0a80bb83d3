package store

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive   = "ACTIVE"
	StatusEnded    = "ENDED"
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

const (
	RoleMember         = "MEMBER"
	RoleMerchant       = "MERCHANT"
	RoleAccounting     = "ACCOUNTING"
	RoleAccountingHead = "ACCOUNTING_HEAD"
	RoleAdmin          = "ADMIN"
)

const (
	BountyDirect   = "DIRECT"
	BountyIndirect = "INDIRECT"
)

// Withdrawal categories map onto the sub-wallet the gross is drawn from.
const (
	CategoryPackage  = "PACKAGE"
	CategoryReferral = "REFERRAL"
	CategoryWinning  = "WINNING"
)

type Member struct {
	ID           string
	Username     string
	Role         string
	IsActive     bool
	IsRestricted bool
	CreatedAt    time.Time
}

// Earnings is the per-member ledger row. Mutated only under a row lock
// inside a transaction; created lazily on first credit.
type Earnings struct {
	MemberID        string
	Combined        decimal.Decimal
	OlympusWallet   decimal.Decimal
	OlympusEarnings decimal.Decimal
	ReferralBounty  decimal.Decimal
	WinningEarnings decimal.Decimal
}

// Referral stores a member's position in the tree: the direct upline and
// the full ordered ancestor path, terminal ancestor first, the member last.
type Referral struct {
	MemberID string
	UplineID string
	Ancestry []string
}

type Package struct {
	ID           string
	Name         string
	Description  string
	Percentage   decimal.Decimal
	MaturityDays int
	IsDisabled   bool
	Color        string
	Image        string
}

type Enrollment struct {
	ID             string
	MemberID       string
	PackageID      string
	Amount         decimal.Decimal
	EarningsAmount decimal.Decimal
	Status         string
	IsReadyToClaim bool
	IsReinvestment bool
	CreatedAt      time.Time
	CompletionAt   *time.Time
}

// EnrollmentProgress is the maturity view of an active enrollment.
type EnrollmentProgress struct {
	Enrollment
	PackageName       string
	PackageColor      string
	PackageDays       int
	PackagePercentage decimal.Decimal
	Completion        decimal.Decimal
	CurrentAmount     decimal.Decimal
}

type BountyEvent struct {
	ID           string
	MemberID     string
	FromMemberID string
	EnrollmentID string
	Level        int
	Percentage   decimal.Decimal
	Earnings     decimal.Decimal
	BountyType   string
	CreatedAt    time.Time
}

type Transaction struct {
	ID          string
	MemberID    string
	Amount      decimal.Decimal
	Description string
	Details     string
	Attachment  string
	CreatedAt   time.Time
}

type DepositRequest struct {
	ID            string
	MemberID      string
	Amount        decimal.Decimal
	AccountName   string
	AccountNumber string
	MerchantID    string
	Attachment    string
	Status        string
	RejectNote    string
	ProcessedBy   string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

type WithdrawalRequest struct {
	ID            string
	MemberID      string
	Category      string
	GrossAmount   decimal.Decimal
	Fee           decimal.Decimal
	NetAmount     decimal.Decimal
	BankName      string
	AccountNumber string
	Status        string
	RejectNote    string
	ProcessedBy   string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

type EnrollPackageInput struct {
	MemberID  string
	PackageID string
	Amount    decimal.Decimal
}

type ClaimInput struct {
	MemberID     string
	EnrollmentID string
	Amount       decimal.Decimal
	Earnings     decimal.Decimal
}

type ReinvestInput struct {
	MemberID     string
	EnrollmentID string
	PackageID    string
	Amount       decimal.Decimal
}

type CreateDepositInput struct {
	MemberID      string
	Amount        decimal.Decimal
	AccountName   string
	AccountNumber string
	MerchantID    string
	Attachment    string
}

type ProcessDepositInput struct {
	RequestID     string
	ProcessorID   string
	ProcessorRole string
	Approve       bool
	Note          string
}

type CreateWithdrawalInput struct {
	MemberID      string
	Category      string
	Amount        decimal.Decimal
	BankName      string
	AccountNumber string
}

type ProcessWithdrawalInput struct {
	RequestID   string
	ProcessorID string
	Approve     bool
	Note        string
}

type CreatePackageInput struct {
	Name         string
	Description  string
	Percentage   decimal.Decimal
	MaturityDays int
	Color        string
	Image        string
}

type UpdatePackageInput struct {
	PackageID    string
	Name         string
	Description  string
	Percentage   decimal.Decimal
	MaturityDays int
	IsDisabled   bool
	Color        string
	Image        string
}
