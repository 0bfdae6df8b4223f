package models

import (
	dErrors "walezi/pkg/domain-errors"
)

// PowersGrant captures the legal powers a guardian may exercise on behalf of
// the ward, plus any court-imposed restrictions.
//
// Invariants:
//   - Property-management powers imply a bond requirement (S.72)
//   - Property-management powers are granted at most once
//   - Granting property management also grants legal-decision powers; the
//     two travel together by convention in guardianship orders
type PowersGrant struct {
	HasPropertyManagementPowers bool     `json:"has_property_management_powers"`
	CanConsentToMedical         bool     `json:"can_consent_to_medical"`
	CanConsentToMarriage        bool     `json:"can_consent_to_marriage"`
	CanMakeLegalDecisions       bool     `json:"can_make_legal_decisions"`
	CanMakeEducationalDecisions bool     `json:"can_make_educational_decisions"`
	Restrictions                []string `json:"restrictions,omitempty"`
	SpecialInstructions         string   `json:"special_instructions,omitempty"`
}

// GrantPropertyManagement returns a copy of the grant with property and legal
// powers set. Fails when property management is already granted.
func (p PowersGrant) GrantPropertyManagement() (PowersGrant, error) {
	if p.HasPropertyManagementPowers {
		return p, dErrors.New(dErrors.CodeInvariantViolation, "property management powers already granted")
	}
	next := p.clone()
	next.HasPropertyManagementPowers = true
	next.CanMakeLegalDecisions = true
	return next, nil
}

// RequiresBond reports whether this grant triggers the S.72 bond requirement.
func (p PowersGrant) RequiresBond() bool {
	return p.HasPropertyManagementPowers
}

// WithRestriction returns a copy carrying an additional restriction.
func (p PowersGrant) WithRestriction(restriction string) PowersGrant {
	next := p.clone()
	next.Restrictions = append(next.Restrictions, restriction)
	return next
}

func (p PowersGrant) clone() PowersGrant {
	next := p
	next.Restrictions = append([]string(nil), p.Restrictions...)
	return next
}
