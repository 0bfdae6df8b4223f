package compliance

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"walezi/internal/guardianship/models"
	dErrors "walezi/pkg/domain-errors"
	platstrings "walezi/pkg/platform/strings"
)

// Policy gate failures. Hard, synchronous, never retried.
var (
	ErrMissingBond          = errors.New("bond required but not posted")
	ErrMissingCourtApproval = errors.New("court approval required")
	ErrComplianceDeadline   = errors.New("outside the permitted submission window")
	ErrJurisdictionConflict = errors.New("jurisdiction conflict")
)

// Jurisdiction is the body of law the guardianship operates under.
type Jurisdiction string

const (
	JurisdictionStatutory     Jurisdiction = "STATUTORY"
	JurisdictionIslamic       Jurisdiction = "ISLAMIC"
	JurisdictionCustomary     Jurisdiction = "CUSTOMARY"
	JurisdictionInternational Jurisdiction = "INTERNATIONAL"
)

// jurisdictionConflicts is deliberately asymmetric: statutory appointments
// cannot coexist with islamic or customary ones, but the reverse pairings
// (and everything involving INTERNATIONAL) are tolerated.
var jurisdictionConflicts = map[Jurisdiction][]Jurisdiction{
	JurisdictionStatutory: {JurisdictionIslamic, JurisdictionCustomary},
}

// ReportType classifies compliance report submissions.
type ReportType string

const (
	ReportAnnualWelfare      ReportType = "ANNUAL_WELFARE"
	ReportQuarterlyFinancial ReportType = "QUARTERLY_FINANCIAL"
	ReportMedicalUpdate      ReportType = "MEDICAL_UPDATE"
)

// reportRules holds the per-type grace window past the due date and the
// sections the submission must carry.
var reportRules = map[ReportType]struct {
	graceDays int
	sections  []string
}{
	ReportAnnualWelfare:      {30, []string{"ward_welfare", "living_situation", "education", "financial_summary"}},
	ReportQuarterlyFinancial: {15, []string{"income", "expenditure", "assets"}},
	ReportMedicalUpdate:      {7, []string{"medical_condition", "treatment_plan"}},
}

// earlySubmissionWindow rejects reports filed suspiciously far ahead of the
// due date (anti-gaming).
const earlySubmissionWindow = 30 * 24 * time.Hour

// minTerminationReasonLen applies when terminating over an incapacitated ward.
const minTerminationReasonLen = 50

// Policy is the stateless gate deciding whether a requested lifecycle
// transition is legally permitted. Gates return nil when the transition may
// proceed; they never mutate the aggregate.
type Policy struct {
	engine *Engine
}

func NewPolicy(engine *Engine) *Policy {
	return &Policy{engine: engine}
}

// CanActivateGuardianship verifies the appointment is complete enough to take
// legal effect: bonds posted where property management is involved, court
// approval where the jurisdiction demands one, and an active primary guardian
// in place.
func (p *Policy) CanActivateGuardianship(g *models.Guardianship, jurisdiction Jurisdiction, now time.Time) error {
	for _, guardian := range g.ActiveGuardians() {
		if guardian.BondStatus(now) == models.BondRequiredPending {
			return dErrors.Wrap(ErrMissingBond, dErrors.CodeInvariantViolation, "guardian "+guardian.GuardianID.String()+" must post an S.72 bond before activation")
		}
	}

	primary, hasPrimary := g.PrimaryGuardian()
	if !hasPrimary {
		return dErrors.New(dErrors.CodeInvariantViolation, "activation requires an active primary guardian")
	}
	if primary.AppointmentSource == models.AppointmentCourt && g.CourtOrder == nil {
		return dErrors.Wrap(ErrMissingCourtApproval, dErrors.CodeInvariantViolation, "court-appointed guardianship requires a court order")
	}

	if p.courtOrderRequired(g, jurisdiction, primary) && g.CourtOrder == nil {
		return dErrors.Wrap(ErrMissingCourtApproval, dErrors.CodeInvariantViolation, "jurisdiction "+string(jurisdiction)+" requires a court order")
	}
	return nil
}

func (p *Policy) courtOrderRequired(g *models.Guardianship, jurisdiction Jurisdiction, primary models.Guardian) bool {
	switch jurisdiction {
	case JurisdictionStatutory, JurisdictionInternational:
		return true
	case JurisdictionIslamic:
		// Only testamentary (will-based) appointments need confirmation.
		return primary.AppointmentSource == models.AppointmentWill
	case JurisdictionCustomary:
		for _, guardian := range g.ActiveGuardians() {
			if guardian.Powers.HasPropertyManagementPowers {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// CanSubmitComplianceReport checks the submission window and required
// sections for the report type. The reference due date is the earliest next
// report due among active guardians.
func (p *Policy) CanSubmitComplianceReport(g *models.Guardianship, reportType ReportType, date time.Time, sections []string) error {
	rules, ok := reportRules[reportType]
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown report type %q", string(reportType))
	}

	due, ok := nextReportDue(g)
	if !ok {
		return dErrors.Wrap(models.ErrInvalidGuardianship, dErrors.CodeInvariantViolation, "no active guardian with a reporting schedule")
	}
	if date.Before(due.Add(-earlySubmissionWindow)) {
		return dErrors.Wrap(ErrComplianceDeadline, dErrors.CodeValidation, "report submitted more than 30 days before it falls due")
	}
	if date.After(due.AddDate(0, 0, rules.graceDays)) {
		return dErrors.Wrap(ErrComplianceDeadline, dErrors.CodeValidation, "report submitted after the "+string(reportType)+" grace deadline")
	}

	normalized := platstrings.DedupeAndTrimLower(sections)
	present := make(map[string]bool, len(normalized))
	for _, section := range normalized {
		present[section] = true
	}
	for _, required := range rules.sections {
		if !present[required] {
			return dErrors.Newf(dErrors.CodeValidation, "%s report is missing required section %q", string(reportType), required)
		}
	}
	return nil
}

func nextReportDue(g *models.Guardianship) (time.Time, bool) {
	var due time.Time
	found := false
	for _, guardian := range g.ActiveGuardians() {
		if !found || guardian.Reporting.NextReportDue.Before(due) {
			due = guardian.Reporting.NextReportDue
			found = true
		}
	}
	return due, found
}

// CanTerminateGuardianship gates the terminal transition. Once the ward is an
// adult with capacity, termination is automatic. Over an incapacitated ward it
// demands a substantial reason, a clean compliance slate, a satisfiable bond
// release where property was managed, and a successor when the sole active
// guardian is leaving.
func (p *Policy) CanTerminateGuardianship(g *models.Guardianship, reason string, now time.Time) error {
	if !g.Ward.IsMinor() && !g.Ward.IsIncapacitated {
		return nil
	}

	if g.Ward.IsIncapacitated {
		if len(strings.TrimSpace(reason)) < minTerminationReasonLen {
			return dErrors.Newf(dErrors.CodeValidation, "termination over an incapacitated ward requires a reason of at least %d characters", minTerminationReasonLen)
		}
		for _, deadline := range p.engine.CalculateComplianceDeadlines(g, now) {
			if deadline.IsOverdue {
				return dErrors.Wrap(ErrComplianceDeadline, dErrors.CodeInvariantViolation, "termination blocked by an overdue compliance deadline")
			}
		}
		if err := p.bondReleaseSatisfied(g, now); err != nil {
			return err
		}
		if len(g.ActiveGuardians()) == 1 {
			return dErrors.Wrap(models.ErrInvalidGuardianship, dErrors.CodeInvariantViolation, "terminating the sole active guardian requires a successor in place")
		}
		return nil
	}

	// Minor ward: termination of the whole guardianship needs court process,
	// which arrives here as a substantial reason.
	if len(strings.TrimSpace(reason)) < minTerminationReasonLen {
		return dErrors.Newf(dErrors.CodeValidation, "termination over a minor ward requires a reason of at least %d characters", minTerminationReasonLen)
	}
	return nil
}

// bondReleaseSatisfied requires every active property-managing guardian to
// hold a live bond, so the surety can be discharged in an orderly release
// rather than called on default.
func (p *Policy) bondReleaseSatisfied(g *models.Guardianship, now time.Time) error {
	for _, guardian := range g.ActiveGuardians() {
		if !guardian.Powers.HasPropertyManagementPowers {
			continue
		}
		if guardian.Bond == nil || guardian.Bond.IsExpired(now) {
			return dErrors.Wrap(ErrMissingBond, dErrors.CodeInvariantViolation, "bond release check failed for guardian "+guardian.GuardianID.String())
		}
	}
	return nil
}

// CheckJurisdictionConflict rejects coexisting appointments whose governing
// law cannot be reconciled. The matrix is asymmetric; check both orderings if
// symmetric behavior is wanted.
func (p *Policy) CheckJurisdictionConflict(a, b Jurisdiction) error {
	for _, conflicting := range jurisdictionConflicts[a] {
		if b == conflicting {
			return dErrors.Wrap(ErrJurisdictionConflict, dErrors.CodeConflict, string(a)+" guardianship conflicts with "+string(b))
		}
	}
	return nil
}

// Bond amount bounds relative to estate value.
var (
	bondFloorRatio   = decimal.NewFromFloat(0.5)
	bondCeilingRatio = decimal.NewFromFloat(2.0)
)

// ValidateBondAmount requires the bond to lie within 50%–200% of the estate
// value, inclusive.
func (p *Policy) ValidateBondAmount(estateValue, bondAmount decimal.Decimal) error {
	if !estateValue.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "estate value must be positive")
	}
	floor := estateValue.Mul(bondFloorRatio)
	ceiling := estateValue.Mul(bondCeilingRatio)
	if bondAmount.LessThan(floor) || bondAmount.GreaterThan(ceiling) {
		return dErrors.Newf(dErrors.CodeValidation, "bond amount %s outside the permitted range [%s, %s]", bondAmount, floor, ceiling)
	}
	return nil
}
