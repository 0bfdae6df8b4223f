package models

import (
	"strings"
	"time"

	id "walezi/pkg/domain"
	dErrors "walezi/pkg/domain-errors"
)

// MajorityAge is the statutory age of majority.
const MajorityAge = 18

// WardInfo is a snapshot of the ward pushed by the external registry
// collaborator. The aggregate never looks the ward up itself.
type WardInfo struct {
	WardID          id.WardID `json:"ward_id"`
	DateOfBirth     time.Time `json:"date_of_birth"`
	IsDeceased      bool      `json:"is_deceased"`
	IsIncapacitated bool      `json:"is_incapacitated"`
	CurrentAge      int       `json:"current_age"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsMinor reports whether the ward is below the age of majority.
func (w WardInfo) IsMinor() bool {
	return w.CurrentAge < MajorityAge
}

// StatutoryMajorityDate is the ward's eighteenth birthday.
func (w WardInfo) StatutoryMajorityDate() time.Time {
	return w.DateOfBirth.AddDate(MajorityAge, 0, 0)
}

// validate checks that the ward can be (or remain) under guardianship.
// A deceased ward surfaces as WardNotFound; an adult with full capacity as
// WardNotMinor.
func (w WardInfo) validate() error {
	if w.WardID.IsNil() {
		return ErrWardNotFound
	}
	if w.IsDeceased {
		return ErrWardNotFound
	}
	if !w.IsMinor() && !w.IsIncapacitated {
		return ErrWardNotMinor
	}
	return nil
}

// WardInfoPatch carries a partial ward update; nil fields are unchanged.
type WardInfoPatch struct {
	IsDeceased      *bool
	IsIncapacitated *bool
	CurrentAge      *int
	UpdatedAt       time.Time
}

func (w WardInfo) apply(patch WardInfoPatch) WardInfo {
	next := w
	if patch.IsDeceased != nil {
		next.IsDeceased = *patch.IsDeceased
	}
	if patch.IsIncapacitated != nil {
		next.IsIncapacitated = *patch.IsIncapacitated
	}
	if patch.CurrentAge != nil {
		next.CurrentAge = *patch.CurrentAge
	}
	if !patch.UpdatedAt.IsZero() {
		next.UpdatedAt = patch.UpdatedAt
	}
	return next
}

// GuardianEligibilityInfo is a snapshot from the external eligibility
// verification collaborator, consumed when adding or replacing a guardian.
type GuardianEligibilityInfo struct {
	Age                   int    `json:"age"`
	IsBankrupt            bool   `json:"is_bankrupt"`
	HasCriminalRecord     bool   `json:"has_criminal_record"`
	CriminalRecordDetails string `json:"criminal_record_details,omitempty"`
	IsIncapacitated       bool   `json:"is_incapacitated"`
}

// validate rejects candidates who are minors, bankrupt, incapacitated, or
// carry an undocumented criminal record. A documented record is left to the
// court's discretion and does not fail here.
func (e GuardianEligibilityInfo) validate() error {
	switch {
	case e.Age < MajorityAge:
		return dErrors.Wrap(ErrGuardianIneligible, dErrors.CodeValidation, "guardian must be at least 18")
	case e.IsBankrupt:
		return dErrors.Wrap(ErrGuardianIneligible, dErrors.CodeValidation, "guardian is an undischarged bankrupt")
	case e.IsIncapacitated:
		return dErrors.Wrap(ErrGuardianIneligible, dErrors.CodeValidation, "guardian lacks legal capacity")
	case e.HasCriminalRecord && strings.TrimSpace(e.CriminalRecordDetails) == "":
		return dErrors.Wrap(ErrGuardianIneligible, dErrors.CodeValidation, "criminal record must be documented for court review")
	}
	return nil
}

// ElderApproval is one item of elder-approval evidence for a customary-law
// appointment.
type ElderApproval struct {
	ElderName  string    `json:"elder_name"`
	Role       string    `json:"role"`
	ApprovedAt time.Time `json:"approved_at"`
}

// CustomaryLawDetails captures the customary context when the guardianship is
// recognized under ethnic or clan custom rather than statute.
type CustomaryLawDetails struct {
	EthnicGroup        string          `json:"ethnic_group"`
	CustomaryAuthority string          `json:"customary_authority"`
	ElderApprovals     []ElderApproval `json:"elder_approvals"`
}

// customaryElderRoles lists groups whose custom requires approval from a
// specific elder role before a guardian is recognized.
var customaryElderRoles = map[string]string{
	"kikuyu": "kiama elder",
	"luo":    "clan head",
	"kamba":  "nzama elder",
	"maasai": "age-set spokesman",
}

// Validate checks customary-law detail completeness: ethnic group, authority,
// at least one elder approval, and the group-specific role where custom
// demands one.
func (c CustomaryLawDetails) Validate() error {
	if strings.TrimSpace(c.EthnicGroup) == "" {
		return dErrors.New(dErrors.CodeValidation, "customary guardianship requires an ethnic group")
	}
	if strings.TrimSpace(c.CustomaryAuthority) == "" {
		return dErrors.New(dErrors.CodeValidation, "customary guardianship requires a recognized customary authority")
	}
	if len(c.ElderApprovals) == 0 {
		return dErrors.New(dErrors.CodeValidation, "customary guardianship requires at least one elder approval")
	}
	for _, approval := range c.ElderApprovals {
		if strings.TrimSpace(approval.ElderName) == "" {
			return dErrors.New(dErrors.CodeValidation, "elder approval must name the approving elder")
		}
	}
	required, ok := customaryElderRoles[strings.ToLower(strings.TrimSpace(c.EthnicGroup))]
	if !ok {
		return nil
	}
	for _, approval := range c.ElderApprovals {
		if strings.EqualFold(strings.TrimSpace(approval.Role), required) {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeValidation, "%s custom requires approval from a %s", c.EthnicGroup, required)
}
