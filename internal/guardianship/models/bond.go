package models

import (
	"time"

	"github.com/shopspring/decimal"

	dErrors "walezi/pkg/domain-errors"
)

// BondStatus summarizes where a guardian stands against the S.72 security
// requirement. Derived, never stored.
type BondStatus string

const (
	BondNotRequired     BondStatus = "NOT_REQUIRED"
	BondRequiredPending BondStatus = "REQUIRED_PENDING"
	BondPosted          BondStatus = "POSTED"
	BondExpired         BondStatus = "EXPIRED"
)

// BondLedger records the financial security a guardian posted before managing
// ward property. Immutable; Renew returns a fresh ledger.
type BondLedger struct {
	Provider            string          `json:"provider"`
	PolicyNumber        string          `json:"policy_number"`
	Amount              decimal.Decimal `json:"amount"`
	IssuedDate          time.Time       `json:"issued_date"`
	ExpiryDate          time.Time       `json:"expiry_date"`
	SuretyDetails       string          `json:"surety_details,omitempty"`
	CourtApprovedAmount decimal.Decimal `json:"court_approved_amount"`
}

// NewBondLedger validates and constructs a bond. The amount must be positive
// and the expiry must fall after issuance.
func NewBondLedger(provider, policyNumber string, amount decimal.Decimal, issued, expiry time.Time, suretyDetails string, courtApproved decimal.Decimal) (BondLedger, error) {
	if provider == "" {
		return BondLedger{}, dErrors.New(dErrors.CodeValidation, "bond provider must not be empty")
	}
	if policyNumber == "" {
		return BondLedger{}, dErrors.New(dErrors.CodeValidation, "bond policy number must not be empty")
	}
	if !amount.IsPositive() {
		return BondLedger{}, dErrors.New(dErrors.CodeValidation, "bond amount must be positive")
	}
	if !expiry.After(issued) {
		return BondLedger{}, dErrors.New(dErrors.CodeValidation, "bond expiry must be after issuance")
	}
	return BondLedger{
		Provider:            provider,
		PolicyNumber:        policyNumber,
		Amount:              amount,
		IssuedDate:          issued,
		ExpiryDate:          expiry,
		SuretyDetails:       suretyDetails,
		CourtApprovedAmount: courtApproved,
	}, nil
}

// Renew returns a new ledger issued now. The policy number is replaced only
// when newPolicy is non-empty; provider and amounts carry over.
func (b BondLedger) Renew(now, newExpiry time.Time, newPolicy string) (BondLedger, error) {
	if !newExpiry.After(now) {
		return BondLedger{}, dErrors.New(dErrors.CodeValidation, "renewed bond expiry must be in the future")
	}
	next := b
	next.IssuedDate = now
	next.ExpiryDate = newExpiry
	if newPolicy != "" {
		next.PolicyNumber = newPolicy
	}
	return next, nil
}

// IsExpired reports whether the bond lapsed. Exactly at expiry the bond still
// counts as posted.
func (b BondLedger) IsExpired(now time.Time) bool {
	return now.After(b.ExpiryDate)
}

// IsExpiringSoon reports whether the bond expires within the window.
func (b BondLedger) IsExpiringSoon(now time.Time, window time.Duration) bool {
	return !b.ExpiryDate.After(now.Add(window))
}

// DefaultExpiryWindow is the look-ahead used for renewal nudges.
const DefaultExpiryWindow = 60 * 24 * time.Hour
