package models

import (
	"time"
)

// GuardianProjection is the read-side view of one guardian.
type GuardianProjection struct {
	GuardianID        string     `json:"guardian_id"`
	IsPrimary         bool       `json:"is_primary"`
	IsActive          bool       `json:"is_active"`
	AppointmentSource string     `json:"appointment_source"`
	AppointmentDate   time.Time  `json:"appointment_date"`
	BondStatus        string     `json:"bond_status"`
	CanManageProperty bool       `json:"can_manage_property"`
	NextReportDue     time.Time  `json:"next_report_due"`
	ReportOverdue     bool       `json:"report_overdue"`
	RemovedDate       *time.Time `json:"removed_date,omitempty"`
	RemovalReason     string     `json:"removal_reason,omitempty"`
}

// GuardianshipProjection is the JSON view consumed by read-side presentation.
// It is derived, never persisted.
type GuardianshipProjection struct {
	ID                  string               `json:"id"`
	WardID              string               `json:"ward_id"`
	WardIsMinor         bool                 `json:"ward_is_minor"`
	IsActive            bool                 `json:"is_active"`
	EstablishedDate     time.Time            `json:"established_date"`
	CustomaryLawApplies bool                 `json:"customary_law_applies"`
	PrimaryGuardianID   string               `json:"primary_guardian_id,omitempty"`
	Guardians           []GuardianProjection `json:"guardians"`
	DissolvedDate       *time.Time           `json:"dissolved_date,omitempty"`
	DissolutionReason   string               `json:"dissolution_reason,omitempty"`
	ComplianceWarnings  []string             `json:"compliance_warnings,omitempty"`
	LastComplianceCheck *time.Time           `json:"last_compliance_check,omitempty"`
	Version             int64                `json:"version"`
}

// Project renders the aggregate for read-side consumers as of now.
func (g *Guardianship) Project(now time.Time) GuardianshipProjection {
	p := GuardianshipProjection{
		ID:                  g.ID.String(),
		WardID:              g.Ward.WardID.String(),
		WardIsMinor:         g.Ward.IsMinor(),
		IsActive:            g.IsActive,
		EstablishedDate:     g.EstablishedDate,
		CustomaryLawApplies: g.CustomaryLawApplies,
		DissolvedDate:       g.DissolvedDate,
		DissolutionReason:   string(g.DissolutionReason),
		ComplianceWarnings:  append([]string(nil), g.ComplianceWarnings...),
		LastComplianceCheck: g.LastComplianceCheck,
		Version:             g.Version,
	}
	if g.PrimaryGuardianID != nil {
		p.PrimaryGuardianID = g.PrimaryGuardianID.String()
	}
	for _, guardian := range g.Guardians {
		p.Guardians = append(p.Guardians, GuardianProjection{
			GuardianID:        guardian.GuardianID.String(),
			IsPrimary:         guardian.IsPrimary,
			IsActive:          guardian.IsActive,
			AppointmentSource: string(guardian.AppointmentSource),
			AppointmentDate:   guardian.AppointmentDate,
			BondStatus:        string(guardian.BondStatus(now)),
			CanManageProperty: guardian.CanManageProperty(now),
			NextReportDue:     guardian.Reporting.NextReportDue,
			ReportOverdue:     guardian.Reporting.IsOverdue(now),
			RemovedDate:       guardian.RemovedDate,
			RemovalReason:     string(guardian.RemovalReason),
		})
	}
	return p
}
