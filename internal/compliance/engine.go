// Package compliance holds the pure calculators and policy gates that sit
// beside the guardianship aggregate: deadline derivation, scoring, penalty
// assessment, calendars, and the legality checks guarding lifecycle
// transitions. Nothing in this package mutates the aggregate.
package compliance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"walezi/internal/guardianship/models"
	id "walezi/pkg/domain"
)

// DeadlineType classifies a computed compliance deadline.
type DeadlineType string

const (
	DeadlineAnnualReport  DeadlineType = "ANNUAL_REPORT"
	DeadlineBondRenewal   DeadlineType = "BOND_RENEWAL"
	DeadlineCourtReview   DeadlineType = "COURT_REVIEW"
	DeadlineSpecialReport DeadlineType = "SPECIAL_REPORT"
)

// Priority orders deadlines for presentation and penalty triage.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Deadline is a computed, never-persisted view of one obligation.
// DueDate is when action falls due, DeadlineDate the hard submission limit,
// GracePeriodEnd the end of the statutory grace window.
type Deadline struct {
	Type           DeadlineType   `json:"type"`
	GuardianID     *id.GuardianID `json:"guardian_id,omitempty"`
	DueDate        time.Time      `json:"due_date"`
	DeadlineDate   time.Time      `json:"deadline_date"`
	GracePeriodEnd time.Time      `json:"grace_period_end"`
	IsOverdue      bool           `json:"is_overdue"`
	DaysUntilDue   int            `json:"days_until_due"`
	DaysOverdue    int            `json:"days_overdue"`
	Priority       Priority       `json:"priority"`
	LegalReference string         `json:"legal_reference"`
	Consequences   []string       `json:"consequences,omitempty"`
}

// Engine is the pure calculator over a guardianship. It holds no state; all
// time-dependent answers take an explicit now.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// CalculateComplianceDeadlines derives every obligation currently bearing on
// the guardianship, sorted by priority (critical first) then ascending due
// date.
func (e *Engine) CalculateComplianceDeadlines(g *models.Guardianship, now time.Time) []Deadline {
	var deadlines []Deadline

	for _, guardian := range g.ActiveGuardians() {
		guardianID := guardian.GuardianID
		deadlines = append(deadlines, e.annualReportDeadline(guardianID, guardian.Reporting, now))
		if guardian.Bond != nil {
			deadlines = append(deadlines, e.bondRenewalDeadline(guardianID, *guardian.Bond, now))
		}
	}

	if g.Ward.IsMinor() {
		deadlines = append(deadlines, e.courtReviewDeadline(g, now))
		if special, ok := e.specialReportDeadline(g, now); ok {
			deadlines = append(deadlines, special)
		}
	}

	sort.SliceStable(deadlines, func(i, j int) bool {
		ri, rj := priorityRank[deadlines[i].Priority], priorityRank[deadlines[j].Priority]
		if ri != rj {
			return ri > rj
		}
		return deadlines[i].DueDate.Before(deadlines[j].DueDate)
	})
	return deadlines
}

func (e *Engine) annualReportDeadline(guardianID id.GuardianID, schedule models.ReportingSchedule, now time.Time) Deadline {
	due := schedule.NextReportDue
	deadline := due.AddDate(0, 0, 30)
	grace := due.AddDate(0, 0, 60)

	d := Deadline{
		Type:           DeadlineAnnualReport,
		GuardianID:     &guardianID,
		DueDate:        due,
		DeadlineDate:   deadline,
		GracePeriodEnd: grace,
		LegalReference: "S.73",
		Consequences:   []string{"monetary penalty", "show-cause summons", "possible removal as guardian"},
	}
	d.IsOverdue = now.After(deadline)
	if d.IsOverdue {
		d.DaysOverdue = daysBetween(deadline, now)
	} else {
		d.DaysUntilDue = daysBetween(now, due)
	}
	switch {
	case now.After(grace):
		d.Priority = PriorityCritical
	case !d.IsOverdue && d.DaysUntilDue <= 7:
		d.Priority = PriorityHigh
	case d.IsOverdue || d.DaysUntilDue <= 30:
		d.Priority = PriorityMedium
	default:
		d.Priority = PriorityLow
	}
	return d
}

func (e *Engine) bondRenewalDeadline(guardianID id.GuardianID, bond models.BondLedger, now time.Time) Deadline {
	due := bond.ExpiryDate.AddDate(0, 0, -30)
	grace := bond.ExpiryDate.AddDate(0, 0, 60)

	d := Deadline{
		Type:           DeadlineBondRenewal,
		GuardianID:     &guardianID,
		DueDate:        due,
		DeadlineDate:   bond.ExpiryDate,
		GracePeriodEnd: grace,
		LegalReference: "S.72",
		Consequences:   []string{"loss of property-management authority", "surety called upon expiry"},
	}
	d.IsOverdue = now.After(due)
	if d.IsOverdue {
		d.DaysOverdue = daysBetween(due, now)
		d.Priority = PriorityCritical
	} else {
		d.DaysUntilDue = daysBetween(now, due)
		switch {
		case d.DaysUntilDue <= 30:
			d.Priority = PriorityHigh
		case d.DaysUntilDue <= 60:
			d.Priority = PriorityMedium
		default:
			d.Priority = PriorityLow
		}
	}
	return d
}

// courtReviewDeadline applies only while the ward is a minor: the court
// revisits the arrangement every two years from the last order, or from
// establishment when no order exists.
func (e *Engine) courtReviewDeadline(g *models.Guardianship, now time.Time) Deadline {
	anchor := g.EstablishedDate
	if g.CourtOrder != nil && !g.CourtOrder.OrderDate.IsZero() {
		anchor = g.CourtOrder.OrderDate
	}
	due := anchor.AddDate(2, 0, 0)
	grace := due.AddDate(0, 0, 90)

	d := Deadline{
		Type:           DeadlineCourtReview,
		DueDate:        due,
		DeadlineDate:   due,
		GracePeriodEnd: grace,
		LegalReference: "S.73",
		Consequences:   []string{"registrar lists the matter for mention"},
	}
	d.IsOverdue = now.After(due)
	if d.IsOverdue {
		d.DaysOverdue = daysBetween(due, now)
		d.Priority = PriorityHigh
	} else {
		d.DaysUntilDue = daysBetween(now, due)
		switch {
		case d.DaysUntilDue <= 90:
			d.Priority = PriorityHigh
		case d.DaysUntilDue <= 180:
			d.Priority = PriorityMedium
		default:
			d.Priority = PriorityLow
		}
	}
	return d
}

// specialReportDeadline fires three months before the ward's statutory
// majority date so the final accounting is ready for handover.
func (e *Engine) specialReportDeadline(g *models.Guardianship, now time.Time) (Deadline, bool) {
	majority := g.Ward.StatutoryMajorityDate()
	due := majority.AddDate(0, -3, 0)
	if now.Before(due.AddDate(0, -3, 0)) {
		// Too early to surface; keep the calendar quiet until six months out.
		return Deadline{}, false
	}
	d := Deadline{
		Type:           DeadlineSpecialReport,
		DueDate:        due,
		DeadlineDate:   majority,
		GracePeriodEnd: majority,
		Priority:       PriorityHigh,
		LegalReference: "S.73",
		Consequences:   []string{"handover accounting incomplete at majority"},
	}
	d.IsOverdue = now.After(due)
	if d.IsOverdue {
		d.DaysOverdue = daysBetween(due, now)
		d.Priority = PriorityCritical
	} else {
		d.DaysUntilDue = daysBetween(now, due)
	}
	return d, true
}

// ComplianceCheck is a snapshot of one previously-submitted (or missed)
// periodic check, supplied by the reporting collaborator. The engine never
// loads these itself.
type ComplianceCheck struct {
	Submitted                bool
	SubmittedDate            time.Time
	DueDate                  time.Time
	DaysLate                 int
	RequiredSections         int
	RequiredSectionsComplete int
	QualityScore             int
	ValidationErrorCount     int
	RequiredAttachmentTypes  int
	AttachmentTypesPresent   int
}

// Trend describes the direction of recent compliance scores.
type Trend string

const (
	TrendImproving Trend = "IMPROVING"
	TrendDeclining Trend = "DECLINING"
	TrendStable    Trend = "STABLE"
)

// Score is the weighted compliance score over submitted checks.
type Score struct {
	Overall       int   `json:"overall"`
	Timeliness    int   `json:"timeliness"`
	Completeness  int   `json:"completeness"`
	Accuracy      int   `json:"accuracy"`
	Documentation int   `json:"documentation"`
	Trend         Trend `json:"trend"`
}

// CalculateComplianceScore scores the guardianship over previously-submitted
// checks only. With nothing submitted the score defaults to perfect with a
// stable trend, so a fresh guardianship is never penalized for lack of
// history.
func (e *Engine) CalculateComplianceScore(_ *models.Guardianship, checks []ComplianceCheck) Score {
	var submitted []ComplianceCheck
	for _, check := range checks {
		if check.Submitted {
			submitted = append(submitted, check)
		}
	}
	if len(submitted) == 0 {
		return Score{Overall: 100, Timeliness: 100, Completeness: 100, Accuracy: 100, Documentation: 100, Trend: TrendStable}
	}

	var timeliness, completeness, accuracy, documentation float64
	for _, check := range submitted {
		timeliness += checkTimeliness(check)
		completeness += ratioScore(check.RequiredSectionsComplete, check.RequiredSections)
		accuracy += checkAccuracy(check)
		documentation += ratioScore(check.AttachmentTypesPresent, check.RequiredAttachmentTypes)
	}
	n := float64(len(submitted))
	timeliness /= n
	completeness /= n
	accuracy /= n
	documentation /= n

	overall := 0.30*timeliness + 0.30*completeness + 0.25*accuracy + 0.15*documentation
	return Score{
		Overall:       clampScore(math.Round(overall)),
		Timeliness:    clampScore(math.Round(timeliness)),
		Completeness:  clampScore(math.Round(completeness)),
		Accuracy:      clampScore(math.Round(accuracy)),
		Documentation: clampScore(math.Round(documentation)),
		Trend:         e.trend(submitted),
	}
}

func checkTimeliness(check ComplianceCheck) float64 {
	return math.Max(0, 100-2*float64(check.DaysLate))
}

func checkAccuracy(check ComplianceCheck) float64 {
	deduction := math.Min(50, 5*float64(check.ValidationErrorCount))
	return math.Max(0, float64(check.QualityScore)-deduction)
}

func ratioScore(have, want int) float64 {
	if want <= 0 {
		return 100
	}
	return 100 * float64(have) / float64(want)
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}

// trendBand is the significance threshold: moves within five points are noise.
const trendBand = 5.0

// trend compares the most recent of the last three submitted scores against
// the first of them and against their mean.
func (e *Engine) trend(submitted []ComplianceCheck) Trend {
	window := submitted
	if len(window) > 3 {
		window = window[len(window)-3:]
	}
	if len(window) < 2 {
		return TrendStable
	}

	scores := make([]float64, len(window))
	var mean float64
	for i, check := range window {
		scores[i] = 0.30*checkTimeliness(check) +
			0.30*ratioScore(check.RequiredSectionsComplete, check.RequiredSections) +
			0.25*checkAccuracy(check) +
			0.15*ratioScore(check.AttachmentTypesPresent, check.RequiredAttachmentTypes)
		mean += scores[i]
	}
	mean /= float64(len(scores))

	recent, first := scores[len(scores)-1], scores[0]
	switch {
	case recent > first+trendBand && recent > mean+trendBand:
		return TrendImproving
	case recent < first-trendBand && recent < mean-trendBand:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// Penalty amounts in KES.
var (
	penaltyBase    = decimal.NewFromInt(5000)
	penaltyPerDay  = decimal.NewFromInt(500)
	penaltyDayCap  = decimal.NewFromInt(15000)
	penaltyCeiling = decimal.NewFromInt(20000)
	mobileMoneyCap = decimal.NewFromInt(50000)
	installmentMin = decimal.NewFromInt(10000)
)

// waiverConditions is the fixed checklist attached to waivable penalties.
var waiverConditions = []string{
	"first default in the preceding 24 months",
	"written explanation filed with the registrar",
	"outstanding filing completed before the waiver hearing",
}

// Penalty is one assessed amount for one overdue deadline.
type Penalty struct {
	Deadline         Deadline        `json:"deadline"`
	Amount           decimal.Decimal `json:"amount"`
	Waivable         bool            `json:"waivable"`
	WaiverConditions []string        `json:"waiver_conditions,omitempty"`
}

// PaymentOption is one accepted way to settle the total.
type PaymentOption struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Deadline     time.Time       `json:"deadline"`
	Installments int             `json:"installments,omitempty"`
}

// PenaltyAssessment aggregates penalties across all overdue deadlines.
type PenaltyAssessment struct {
	Penalties       []Penalty       `json:"penalties"`
	Total           decimal.Decimal `json:"total"`
	PaymentDeadline time.Time       `json:"payment_deadline"`
	PaymentOptions  []PaymentOption `json:"payment_options,omitempty"`
}

// CalculatePenalties assesses each overdue deadline at a 5,000 KES base plus
// 500 KES per day overdue, capped at 20,000 KES, and derives payment terms.
func (e *Engine) CalculatePenalties(g *models.Guardianship, now time.Time) PenaltyAssessment {
	assessment := PenaltyAssessment{
		Total:           decimal.Zero,
		PaymentDeadline: now.AddDate(0, 0, 30),
	}
	for _, deadline := range e.CalculateComplianceDeadlines(g, now) {
		if !deadline.IsOverdue {
			continue
		}
		daily := penaltyPerDay.Mul(decimal.NewFromInt(int64(deadline.DaysOverdue)))
		if daily.GreaterThan(penaltyDayCap) {
			daily = penaltyDayCap
		}
		amount := penaltyBase.Add(daily)
		if amount.GreaterThan(penaltyCeiling) {
			amount = penaltyCeiling
		}
		penalty := Penalty{
			Deadline: deadline,
			Amount:   amount,
			Waivable: deadline.DaysOverdue < 30,
		}
		if penalty.Waivable {
			penalty.WaiverConditions = append([]string(nil), waiverConditions...)
		}
		assessment.Penalties = append(assessment.Penalties, penalty)
		assessment.Total = assessment.Total.Add(amount)
	}
	if len(assessment.Penalties) == 0 {
		return assessment
	}

	mobile := assessment.Total
	if mobile.GreaterThan(mobileMoneyCap) {
		mobile = mobileMoneyCap
	}
	assessment.PaymentOptions = []PaymentOption{
		{Method: "MOBILE_MONEY", Amount: mobile, Deadline: assessment.PaymentDeadline},
		{Method: "BANK_TRANSFER", Amount: assessment.Total, Deadline: assessment.PaymentDeadline},
		{Method: "CASH_AT_COURT", Amount: assessment.Total, Deadline: assessment.PaymentDeadline.AddDate(0, 0, 7)},
	}
	if assessment.Total.GreaterThan(installmentMin) {
		assessment.PaymentOptions = append(assessment.PaymentOptions, PaymentOption{
			Method:       "INSTALLMENTS",
			Amount:       assessment.Total,
			Deadline:     now.AddDate(0, 0, 90),
			Installments: 3,
		})
	}
	return assessment
}

// CalendarEntryKind classifies calendar rows.
type CalendarEntryKind string

const (
	EntryDeadline    CalendarEntryKind = "DEADLINE"
	EntryPreparation CalendarEntryKind = "PREPARATION"
)

// CalendarEntry is one dated row in the compliance calendar.
type CalendarEntry struct {
	Date        time.Time         `json:"date"`
	Kind        CalendarEntryKind `json:"kind"`
	Deadline    DeadlineType      `json:"deadline_type"`
	Priority    Priority          `json:"priority"`
	Description string            `json:"description"`
}

// Reminder is a computed delivery record for the external dispatch
// collaborator. The engine decides channel, date, and message; it never
// sends anything.
type Reminder struct {
	Channel string    `json:"channel"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

// Calendar is the compliance calendar for a year or a single month.
type Calendar struct {
	Year      int             `json:"year"`
	Month     int             `json:"month,omitempty"`
	Entries   []CalendarEntry `json:"entries"`
	Reminders []Reminder      `json:"reminders"`
}

// GenerateComplianceCalendar filters deadlines to the requested period,
// derives a preparation task seven days before each deadline, pre-due
// reminders at T-30/T-7/T-1, and one urgent reminder per day once overdue.
// month of zero means the whole year.
func (e *Engine) GenerateComplianceCalendar(g *models.Guardianship, now time.Time, year, month int) Calendar {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	if month >= 1 && month <= 12 {
		start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	}
	inPeriod := func(t time.Time) bool {
		return !t.Before(start) && t.Before(end)
	}

	cal := Calendar{Year: year, Month: month}
	for _, deadline := range e.CalculateComplianceDeadlines(g, now) {
		if inPeriod(deadline.DueDate) {
			cal.Entries = append(cal.Entries, CalendarEntry{
				Date:        deadline.DueDate,
				Kind:        EntryDeadline,
				Deadline:    deadline.Type,
				Priority:    deadline.Priority,
				Description: fmt.Sprintf("%s due (%s)", deadline.Type, deadline.LegalReference),
			})
		}
		if prep := deadline.DueDate.AddDate(0, 0, -7); inPeriod(prep) {
			cal.Entries = append(cal.Entries, CalendarEntry{
				Date:        prep,
				Kind:        EntryPreparation,
				Deadline:    deadline.Type,
				Priority:    deadline.Priority,
				Description: fmt.Sprintf("prepare %s submission", deadline.Type),
			})
		}

		for _, lead := range []struct {
			days    int
			channel string
		}{{30, "EMAIL"}, {7, "SMS"}, {1, "SMS"}} {
			date := deadline.DueDate.AddDate(0, 0, -lead.days)
			if inPeriod(date) {
				cal.Reminders = append(cal.Reminders, Reminder{
					Channel: lead.channel,
					Date:    date,
					Message: fmt.Sprintf("%s due in %d day(s) on %s", deadline.Type, lead.days, deadline.DueDate.Format("2006-01-02")),
				})
			}
		}
		if deadline.IsOverdue {
			// One urgent nudge per day from the day after it fell due until
			// the period (or today) runs out.
			until := end
			if now.Before(until) {
				until = now.AddDate(0, 0, 1)
			}
			for date := deadline.DueDate.AddDate(0, 0, 1); date.Before(until); date = date.AddDate(0, 0, 1) {
				if !inPeriod(date) {
					continue
				}
				cal.Reminders = append(cal.Reminders, Reminder{
					Channel: "SMS",
					Date:    date,
					Message: fmt.Sprintf("URGENT: %s overdue since %s", deadline.Type, deadline.DueDate.Format("2006-01-02")),
				})
			}
		}
	}

	sort.SliceStable(cal.Entries, func(i, j int) bool { return cal.Entries[i].Date.Before(cal.Entries[j].Date) })
	sort.SliceStable(cal.Reminders, func(i, j int) bool { return cal.Reminders[i].Date.Before(cal.Reminders[j].Date) })
	return cal
}
