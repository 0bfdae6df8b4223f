package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "walezi/pkg/domain"
	dErrors "walezi/pkg/domain-errors"
)

// AppointmentSource records under which authority a guardian was appointed.
type AppointmentSource string

const (
	AppointmentFamily       AppointmentSource = "FAMILY"
	AppointmentCourt        AppointmentSource = "COURT"
	AppointmentWill         AppointmentSource = "WILL"
	AppointmentCustomaryLaw AppointmentSource = "CUSTOMARY_LAW"
)

// TerminationReason explains why a guardian's role ended.
type TerminationReason string

const (
	TerminationReplaced           TerminationReason = "REPLACED"
	TerminationRemoved            TerminationReason = "REMOVED"
	TerminationWardMajority       TerminationReason = "WARD_REACHED_MAJORITY"
	TerminationWardDeceased       TerminationReason = "WARD_DECEASED"
	TerminationWardCapacity       TerminationReason = "WARD_REGAINED_CAPACITY"
	TerminationCourtOrder         TerminationReason = "COURT_ORDER"
	TerminationVoluntary          TerminationReason = "VOLUNTARY_RESIGNATION"
	TerminationGuardianshipClosed TerminationReason = "GUARDIANSHIP_DISSOLVED"
)

// Guardian is a child entity of the Guardianship aggregate: one person's role
// over the ward, composed of the powers grant, the optional bond, and the
// reporting schedule. Mutations return a new value; the aggregate swaps the
// map entry.
type Guardian struct {
	GuardianID        id.GuardianID     `json:"guardian_id"`
	IsPrimary         bool              `json:"is_primary"`
	AppointmentDate   time.Time         `json:"appointment_date"`
	AppointmentSource AppointmentSource `json:"appointment_source"`
	Powers            PowersGrant       `json:"powers"`
	BondRequired      bool              `json:"bond_required"`
	Bond              *BondLedger       `json:"bond,omitempty"`
	Reporting         ReportingSchedule `json:"reporting"`
	AnnualAllowance   *decimal.Decimal  `json:"annual_allowance,omitempty"`
	IsActive          bool              `json:"is_active"`
	RemovedDate       *time.Time        `json:"removed_date,omitempty"`
	RemovalReason     TerminationReason `json:"removal_reason,omitempty"`
	Restrictions      []string          `json:"restrictions,omitempty"`
}

func newGuardian(guardianID id.GuardianID, primary bool, source AppointmentSource, appointed time.Time, powers PowersGrant, bond *BondLedger, allowance *decimal.Decimal) (Guardian, error) {
	reporting, err := NewReportingSchedule(FrequencyAnnual, appointed)
	if err != nil {
		return Guardian{}, err
	}
	if allowance != nil && allowance.IsNegative() {
		return Guardian{}, dErrors.New(dErrors.CodeValidation, "annual allowance must not be negative")
	}
	g := Guardian{
		GuardianID:        guardianID,
		IsPrimary:         primary,
		AppointmentDate:   appointed,
		AppointmentSource: source,
		Powers:            powers,
		BondRequired:      powers.RequiresBond(),
		Bond:              bond,
		Reporting:         reporting,
		AnnualAllowance:   allowance,
		IsActive:          true,
	}
	return g, nil
}

// BondStatus derives where the guardian stands against S.72.
func (g Guardian) BondStatus(now time.Time) BondStatus {
	switch {
	case !g.BondRequired:
		return BondNotRequired
	case g.Bond == nil:
		return BondRequiredPending
	case g.Bond.IsExpired(now):
		return BondExpired
	default:
		return BondPosted
	}
}

// CanManageProperty holds only when the guardian has property-management
// powers and the S.72 security requirement is satisfied.
func (g Guardian) CanManageProperty(now time.Time) bool {
	if !g.Powers.HasPropertyManagementPowers {
		return false
	}
	if !g.BondRequired {
		return true
	}
	return g.Bond != nil && !g.Bond.IsExpired(now)
}

// postBond attaches a validated bond ledger.
func (g Guardian) postBond(bond BondLedger) (Guardian, error) {
	if !g.IsActive {
		return g, dErrors.New(dErrors.CodeInvariantViolation, "cannot post a bond for a terminated guardian")
	}
	if !g.BondRequired {
		return g, dErrors.New(dErrors.CodeInvariantViolation, "guardian has no bond requirement")
	}
	next := g
	next.Bond = &bond
	return next, nil
}

// fileAnnualReport advances the reporting schedule.
func (g Guardian) fileAnnualReport(date time.Time, status string) (Guardian, error) {
	if !g.IsActive {
		return g, dErrors.New(dErrors.CodeInvariantViolation, "cannot file a report for a terminated guardian")
	}
	reporting, err := g.Reporting.FileReport(date, status)
	if err != nil {
		return g, err
	}
	next := g
	next.Reporting = reporting
	return next, nil
}

// grantPropertyPowers upgrades the powers grant and flips the bond
// requirement on.
func (g Guardian) grantPropertyPowers() (Guardian, error) {
	if !g.IsActive {
		return g, dErrors.New(dErrors.CodeInvariantViolation, "cannot grant powers to a terminated guardian")
	}
	powers, err := g.Powers.GrantPropertyManagement()
	if err != nil {
		return g, err
	}
	next := g
	next.Powers = powers
	next.BondRequired = true
	return next, nil
}

// updateAllowance replaces the annual allowance.
func (g Guardian) updateAllowance(allowance decimal.Decimal) (Guardian, error) {
	if !g.IsActive {
		return g, dErrors.New(dErrors.CodeInvariantViolation, "cannot set an allowance for a terminated guardian")
	}
	if allowance.IsNegative() {
		return g, dErrors.New(dErrors.CodeValidation, "annual allowance must not be negative")
	}
	next := g
	next.AnnualAllowance = &allowance
	return next, nil
}

// terminate deactivates the guardian, recording when and why.
func (g Guardian) terminate(reason TerminationReason, date time.Time) Guardian {
	next := g
	next.IsActive = false
	next.IsPrimary = false
	removed := date
	next.RemovedDate = &removed
	next.RemovalReason = reason
	return next
}
