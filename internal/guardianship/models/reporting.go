package models

import (
	"time"

	dErrors "walezi/pkg/domain-errors"
)

// ReportFrequency controls how often a guardian must account for the ward's
// welfare and property under S.73.
type ReportFrequency string

const (
	FrequencyAnnual     ReportFrequency = "ANNUAL"
	FrequencySemiAnnual ReportFrequency = "SEMI_ANNUAL"
	FrequencyQuarterly  ReportFrequency = "QUARTERLY"
	FrequencyOnDemand   ReportFrequency = "ON_DEMAND"
)

// DefaultGracePeriodDays mirrors the statutory grace period for late reports.
const DefaultGracePeriodDays = 60

// overdueReminderInterval throttles repeat reminders after the first one.
const overdueReminderInterval = 7 * 24 * time.Hour

// ReportingSchedule tracks S.73 reporting due dates and overdue detection for
// one guardian. Immutable; FileReport returns the advanced schedule.
type ReportingSchedule struct {
	Frequency                ReportFrequency `json:"frequency"`
	FirstReportDue           time.Time       `json:"first_report_due"`
	LastReportDate           *time.Time      `json:"last_report_date,omitempty"`
	NextReportDue            time.Time       `json:"next_report_due"`
	Status                   string          `json:"status"`
	GracePeriodDays          int             `json:"grace_period_days"`
	OverdueNotificationsSent int             `json:"overdue_notifications_sent"`
	LastOverdueNotification  *time.Time      `json:"last_overdue_notification,omitempty"`
}

// NewReportingSchedule builds a schedule with the first report due one
// interval after the appointment date.
func NewReportingSchedule(frequency ReportFrequency, appointed time.Time) (ReportingSchedule, error) {
	interval, err := frequency.interval()
	if err != nil {
		return ReportingSchedule{}, err
	}
	firstDue := appointed.AddDate(0, interval, 0)
	if frequency == FrequencyOnDemand {
		// On-demand schedules have no automatic cadence; the court sets the
		// first due date explicitly when it orders a report.
		firstDue = appointed.AddDate(0, 12, 0)
	}
	return ReportingSchedule{
		Frequency:       frequency,
		FirstReportDue:  firstDue,
		NextReportDue:   firstDue,
		Status:          "PENDING",
		GracePeriodDays: DefaultGracePeriodDays,
	}, nil
}

func (f ReportFrequency) interval() (int, error) {
	switch f {
	case FrequencyAnnual:
		return 12, nil
	case FrequencySemiAnnual:
		return 6, nil
	case FrequencyQuarterly:
		return 3, nil
	case FrequencyOnDemand:
		return 0, nil
	default:
		return 0, dErrors.Newf(dErrors.CodeValidation, "unknown report frequency %q", string(f))
	}
}

// FileReport records a filed report: the overdue-notification state resets,
// and the next due date advances by one frequency interval from the filing
// date. ON_DEMAND schedules do not auto-advance.
func (r ReportingSchedule) FileReport(date time.Time, status string) (ReportingSchedule, error) {
	if date.IsZero() {
		return ReportingSchedule{}, dErrors.New(dErrors.CodeValidation, "report date must not be zero")
	}
	interval, err := r.Frequency.interval()
	if err != nil {
		return ReportingSchedule{}, err
	}
	next := r
	filed := date
	next.LastReportDate = &filed
	next.Status = status
	next.OverdueNotificationsSent = 0
	next.LastOverdueNotification = nil
	if r.Frequency != FrequencyOnDemand {
		next.NextReportDue = date.AddDate(0, interval, 0)
	}
	return next, nil
}

// IsOverdue reports whether the schedule passed its due date plus the grace
// period. Exactly at the boundary the report is not yet overdue.
func (r ReportingSchedule) IsOverdue(now time.Time) bool {
	graceEnd := r.NextReportDue.AddDate(0, 0, r.GracePeriodDays)
	return now.After(graceEnd)
}

// ShouldSendOverdueReminder is true on first overdue detection and then at
// most once per seven days.
func (r ReportingSchedule) ShouldSendOverdueReminder(now time.Time) bool {
	if !r.IsOverdue(now) {
		return false
	}
	if r.OverdueNotificationsSent == 0 || r.LastOverdueNotification == nil {
		return true
	}
	return now.Sub(*r.LastOverdueNotification) >= overdueReminderInterval
}

// RecordOverdueNotification returns the schedule with the reminder counted.
func (r ReportingSchedule) RecordOverdueNotification(now time.Time) ReportingSchedule {
	next := r
	next.OverdueNotificationsSent++
	sent := now
	next.LastOverdueNotification = &sent
	return next
}
