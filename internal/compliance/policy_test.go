package compliance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"walezi/internal/guardianship/models"
	id "walezi/pkg/domain"
)

type PolicySuite struct {
	suite.Suite

	policy *Policy
	now    time.Time
}

func TestPolicySuite(t *testing.T) {
	suite.Run(t, new(PolicySuite))
}

func (s *PolicySuite) SetupTest() {
	s.policy = NewPolicy(NewEngine())
	s.now = time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
}

func (s *PolicySuite) build(params models.CreateParams) *models.Guardianship {
	g, _, err := models.NewGuardianship(params)
	s.Require().NoError(err)
	return g
}

func (s *PolicySuite) baseParams() models.CreateParams {
	return models.CreateParams{
		Ward: models.WardInfo{
			WardID:      id.NewWardID(),
			DateOfBirth: s.now.AddDate(-12, 0, 0),
			CurrentAge:  12,
		},
		GuardianID:      id.NewGuardianID(),
		Eligibility:     models.GuardianEligibilityInfo{Age: 50},
		Source:          models.AppointmentFamily,
		AppointmentDate: s.now.AddDate(0, -1, 0),
	}
}

func (s *PolicySuite) liveBond() models.BondLedger {
	bond, err := models.NewBondLedger("Madison Insurance", "MD-11", decimal.NewFromInt(250_000),
		s.now.AddDate(0, -1, 0), s.now.AddDate(1, 0, 0), "", decimal.NewFromInt(250_000))
	s.Require().NoError(err)
	return bond
}

func (s *PolicySuite) TestCanActivateGuardianship() {
	s.Run("pending bond blocks activation", func() {
		params := s.baseParams()
		params.Powers = models.PowersGrant{HasPropertyManagementPowers: true}
		g := s.build(params)

		err := s.policy.CanActivateGuardianship(g, JurisdictionCustomary, s.now)
		s.ErrorIs(err, ErrMissingBond)

		bond := s.liveBond()
		s.Require().NoError(g.PostGuardianBond(params.GuardianID, bond))
		s.Error(s.policy.CanActivateGuardianship(g, JurisdictionCustomary, s.now))
		// Still blocked: customary jurisdiction with property powers needs an order.
	})

	s.Run("court-appointed guardianship needs a court order", func() {
		params := s.baseParams()
		params.Source = models.AppointmentCourt
		g := s.build(params)

		err := s.policy.CanActivateGuardianship(g, JurisdictionIslamic, s.now)
		s.ErrorIs(err, ErrMissingCourtApproval)

		params.CourtOrder = &models.CourtOrder{OrderNumber: "HC-88/2026", CourtStation: "Milimani", OrderDate: params.AppointmentDate}
		g = s.build(params)
		s.NoError(s.policy.CanActivateGuardianship(g, JurisdictionIslamic, s.now))
	})

	s.Run("statutory and international always need a court order", func() {
		g := s.build(s.baseParams())
		s.ErrorIs(s.policy.CanActivateGuardianship(g, JurisdictionStatutory, s.now), ErrMissingCourtApproval)
		s.ErrorIs(s.policy.CanActivateGuardianship(g, JurisdictionInternational, s.now), ErrMissingCourtApproval)
	})

	s.Run("islamic needs an order only for testamentary appointments", func() {
		params := s.baseParams()
		params.Source = models.AppointmentWill
		g := s.build(params)
		s.ErrorIs(s.policy.CanActivateGuardianship(g, JurisdictionIslamic, s.now), ErrMissingCourtApproval)

		params.Source = models.AppointmentFamily
		g = s.build(params)
		s.NoError(s.policy.CanActivateGuardianship(g, JurisdictionIslamic, s.now))
	})

	s.Run("customary without property powers activates freely", func() {
		g := s.build(s.baseParams())
		s.NoError(s.policy.CanActivateGuardianship(g, JurisdictionCustomary, s.now))
	})
}

func (s *PolicySuite) TestCanSubmitComplianceReport() {
	params := s.baseParams()
	g := s.build(params)
	due := params.AppointmentDate.AddDate(0, 12, 0)
	welfareSections := []string{"Ward_Welfare", "LIVING_SITUATION", "education", "financial_summary"}

	s.Run("rejects unknown report types", func() {
		s.Error(s.policy.CanSubmitComplianceReport(g, "WEEKLY_DIARY", due, welfareSections))
	})

	s.Run("rejects submissions more than thirty days early", func() {
		err := s.policy.CanSubmitComplianceReport(g, ReportAnnualWelfare, due.AddDate(0, 0, -31), welfareSections)
		s.ErrorIs(err, ErrComplianceDeadline)

		s.NoError(s.policy.CanSubmitComplianceReport(g, ReportAnnualWelfare, due.AddDate(0, 0, -30), welfareSections))
	})

	s.Run("enforces the per-type grace deadline", func() {
		s.NoError(s.policy.CanSubmitComplianceReport(g, ReportAnnualWelfare, due.AddDate(0, 0, 30), welfareSections))
		s.ErrorIs(s.policy.CanSubmitComplianceReport(g, ReportAnnualWelfare, due.AddDate(0, 0, 31), welfareSections), ErrComplianceDeadline)

		financial := []string{"income", "expenditure", "assets"}
		s.ErrorIs(s.policy.CanSubmitComplianceReport(g, ReportQuarterlyFinancial, due.AddDate(0, 0, 16), financial), ErrComplianceDeadline)

		medical := []string{"medical_condition", "treatment_plan"}
		s.ErrorIs(s.policy.CanSubmitComplianceReport(g, ReportMedicalUpdate, due.AddDate(0, 0, 8), medical), ErrComplianceDeadline)
	})

	s.Run("requires every section, case-insensitively", func() {
		s.NoError(s.policy.CanSubmitComplianceReport(g, ReportAnnualWelfare, due, welfareSections))

		missing := []string{"ward_welfare", "living_situation", "education"}
		err := s.policy.CanSubmitComplianceReport(g, ReportAnnualWelfare, due, missing)
		s.Require().Error(err)
		s.Contains(err.Error(), "financial_summary")
	})

	s.Run("dissolved guardianship has no reference due date", func() {
		dissolved := s.build(s.baseParams())
		s.Require().NoError(dissolved.DissolveGuardianship(models.DissolutionCourtOrder, s.now, "HC-2/2026"))
		err := s.policy.CanSubmitComplianceReport(dissolved, ReportAnnualWelfare, due, welfareSections)
		s.ErrorIs(err, models.ErrInvalidGuardianship)
	})
}

func (s *PolicySuite) TestCanTerminateGuardianship() {
	longReason := "The guardian has relocated permanently to another country and a court-approved successor has assumed all duties."

	s.Run("adult ward with capacity terminates automatically", func() {
		params := s.baseParams()
		params.Ward.CurrentAge = 30
		params.Ward.IsIncapacitated = true
		g := s.build(params)
		g.Ward.IsIncapacitated = false

		s.NoError(s.policy.CanTerminateGuardianship(g, "", s.now))
	})

	s.Run("minor ward requires a substantial reason", func() {
		g := s.build(s.baseParams())
		s.Error(s.policy.CanTerminateGuardianship(g, "done", s.now))
		s.NoError(s.policy.CanTerminateGuardianship(g, longReason, s.now))
	})

	s.Run("incapacitated ward demands a clean slate and a successor", func() {
		params := s.baseParams()
		params.Ward.CurrentAge = 40
		params.Ward.IsIncapacitated = true
		g := s.build(params)

		s.Error(s.policy.CanTerminateGuardianship(g, "short", s.now))

		// Sole active guardian: blocked even with a good reason.
		err := s.policy.CanTerminateGuardianship(g, longReason, s.now)
		s.ErrorIs(err, models.ErrInvalidGuardianship)

		s.Require().NoError(g.AddCoGuardian(models.AddGuardianParams{
			GuardianID:      id.NewGuardianID(),
			Eligibility:     models.GuardianEligibilityInfo{Age: 38},
			Source:          models.AppointmentCourt,
			AppointmentDate: s.now.AddDate(0, -1, 0),
		}))
		s.NoError(s.policy.CanTerminateGuardianship(g, longReason, s.now))

		// An overdue deadline blocks again.
		overdueAt := params.AppointmentDate.AddDate(0, 12, 90)
		err = s.policy.CanTerminateGuardianship(g, longReason, overdueAt)
		s.ErrorIs(err, ErrComplianceDeadline)
	})

	s.Run("bond release must be satisfiable", func() {
		params := s.baseParams()
		params.Ward.CurrentAge = 40
		params.Ward.IsIncapacitated = true
		params.Powers = models.PowersGrant{HasPropertyManagementPowers: true}
		g := s.build(params)
		s.Require().NoError(g.AddCoGuardian(models.AddGuardianParams{
			GuardianID:      id.NewGuardianID(),
			Eligibility:     models.GuardianEligibilityInfo{Age: 38},
			Source:          models.AppointmentCourt,
			AppointmentDate: s.now.AddDate(0, -1, 0),
		}))

		s.ErrorIs(s.policy.CanTerminateGuardianship(g, longReason, s.now), ErrMissingBond)
	})
}

func (s *PolicySuite) TestCheckJurisdictionConflict() {
	s.Run("statutory conflicts with islamic and customary", func() {
		s.ErrorIs(s.policy.CheckJurisdictionConflict(JurisdictionStatutory, JurisdictionIslamic), ErrJurisdictionConflict)
		s.ErrorIs(s.policy.CheckJurisdictionConflict(JurisdictionStatutory, JurisdictionCustomary), ErrJurisdictionConflict)
	})

	s.Run("the matrix is asymmetric", func() {
		s.NoError(s.policy.CheckJurisdictionConflict(JurisdictionIslamic, JurisdictionStatutory))
		s.NoError(s.policy.CheckJurisdictionConflict(JurisdictionCustomary, JurisdictionStatutory))
	})

	s.Run("international coexists with everything", func() {
		s.NoError(s.policy.CheckJurisdictionConflict(JurisdictionInternational, JurisdictionStatutory))
		s.NoError(s.policy.CheckJurisdictionConflict(JurisdictionStatutory, JurisdictionInternational))
	})
}

func (s *PolicySuite) TestValidateBondAmount() {
	estate := decimal.NewFromInt(1_000_000)

	s.Run("accepts the inclusive bounds", func() {
		s.NoError(s.policy.ValidateBondAmount(estate, decimal.NewFromInt(500_000)))
		s.NoError(s.policy.ValidateBondAmount(estate, decimal.NewFromInt(2_000_000)))
		s.NoError(s.policy.ValidateBondAmount(estate, estate))
	})

	s.Run("rejects amounts outside the range", func() {
		s.Error(s.policy.ValidateBondAmount(estate, decimal.NewFromInt(499_999)))
		s.Error(s.policy.ValidateBondAmount(estate, decimal.NewFromInt(2_000_001)))
	})

	s.Run("rejects a non-positive estate", func() {
		s.Error(s.policy.ValidateBondAmount(decimal.Zero, decimal.NewFromInt(100)))
	})
}
