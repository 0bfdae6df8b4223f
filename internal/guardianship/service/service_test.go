package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"walezi/internal/compliance"
	"walezi/internal/guardianship/models"
	"walezi/internal/guardianship/service"
	"walezi/internal/guardianship/store"
	id "walezi/pkg/domain"
	dErrors "walezi/pkg/domain-errors"
	"walezi/pkg/platform/outbox"
)

type ServiceSuite struct {
	suite.Suite

	ctx    context.Context
	now    time.Time
	store  *store.InMemory
	outbox *outbox.InMemoryStore
	svc    *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s.store = store.NewInMemory()
	s.outbox = outbox.NewInMemoryStore()

	engine := compliance.NewEngine()
	s.svc = service.New(s.store, s.outbox, service.NoopRunner{}, engine, compliance.NewPolicy(engine),
		slog.New(slog.DiscardHandler),
		service.WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) createParams() models.CreateParams {
	return models.CreateParams{
		Ward: models.WardInfo{
			WardID:      id.NewWardID(),
			DateOfBirth: s.now.AddDate(-8, 0, 0),
			CurrentAge:  8,
		},
		GuardianID:      id.NewGuardianID(),
		Eligibility:     models.GuardianEligibilityInfo{Age: 44},
		Source:          models.AppointmentFamily,
		AppointmentDate: s.now.AddDate(0, -2, 0),
	}
}

func (s *ServiceSuite) create() *models.Guardianship {
	g, warnings, err := s.svc.Create(s.ctx, s.createParams())
	s.Require().NoError(err)
	s.Require().Empty(warnings)
	return g
}

func (s *ServiceSuite) pendingTypes() []string {
	pending, err := s.outbox.ListPending(s.ctx, 0)
	s.Require().NoError(err)
	types := make([]string, 0, len(pending))
	for _, record := range pending {
		types = append(types, record.EventType)
	}
	return types
}

func (s *ServiceSuite) TestCreate() {
	s.Run("persists the aggregate and its creation event", func() {
		g := s.create()

		loaded, err := s.svc.Get(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(g.Version, loaded.Version)

		s.Equal([]string{string(models.EventGuardianshipCreated)}, s.pendingTypes())
	})

	s.Run("rejects an ineligible guardian without touching the store", func() {
		params := s.createParams()
		params.Eligibility.IsBankrupt = true
		_, _, err := s.svc.Create(s.ctx, params)
		s.Require().Error(err)
		s.ErrorIs(err, models.ErrGuardianIneligible)
	})
}

func (s *ServiceSuite) TestGet() {
	_, err := s.svc.Get(s.ctx, id.NewGuardianshipID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAddCoGuardian() {
	g := s.create()
	s.outbox.Clear()

	updated, err := s.svc.AddCoGuardian(s.ctx, g.ID, models.AddGuardianParams{
		GuardianID:      id.NewGuardianID(),
		Eligibility:     models.GuardianEligibilityInfo{Age: 39},
		Source:          models.AppointmentCourt,
		AppointmentDate: s.now,
	})
	s.Require().NoError(err)
	s.Len(updated.ActiveGuardians(), 2)
	s.Equal(g.Version+1, updated.Version)

	s.Equal([]string{string(models.EventMultipleGuardiansAssigned)}, s.pendingTypes())

	loaded, err := s.svc.Get(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(updated.Version, loaded.Version)
}

func (s *ServiceSuite) TestRemoveGuardianDomainFailure() {
	g := s.create()
	s.outbox.Clear()

	_, err := s.svc.RemoveGuardian(s.ctx, g.ID, g.Guardians[0].GuardianID, models.TerminationRemoved, s.now)
	s.Require().Error(err)
	s.ErrorIs(err, models.ErrInvalidGuardianship)
	s.Empty(s.pendingTypes())

	loaded, err := s.svc.Get(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(g.Version, loaded.Version)
}

func (s *ServiceSuite) TestDissolvePolicyGate() {
	g := s.create()

	_, err := s.svc.Dissolve(s.ctx, g.ID, models.DissolutionCourtOrder, "too short", s.now, "HC-5/2026")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	justification := "Court order HC-5/2026 of 1 March 2026 directs closure and transfer of the ward into kinship foster care."
	dissolved, err := s.svc.Dissolve(s.ctx, g.ID, models.DissolutionCourtOrder, justification, s.now, "HC-5/2026")
	s.Require().NoError(err)
	s.False(dissolved.IsActive)
	s.Equal(models.DissolutionCourtOrder, dissolved.DissolutionReason)
}

func (s *ServiceSuite) TestPostGuardianBond() {
	g := s.create()
	guardianID := g.Guardians[0].GuardianID

	s.Run("rejects invalid bond parameters before loading", func() {
		_, err := s.svc.PostGuardianBond(s.ctx, g.ID, guardianID, "CIC", "CIC-1",
			decimal.Zero, s.now, s.now.AddDate(1, 0, 0), "", decimal.Zero)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("attaches a bond once powers require one", func() {
		_, err := s.svc.GrantPropertyPowers(s.ctx, g.ID, guardianID)
		s.Require().NoError(err)
		s.outbox.Clear()

		updated, err := s.svc.PostGuardianBond(s.ctx, g.ID, guardianID, "CIC", "CIC-1",
			decimal.NewFromInt(200_000), s.now, s.now.AddDate(1, 0, 0), "", decimal.NewFromInt(200_000))
		s.Require().NoError(err)

		guardian, ok := updated.Guardian(guardianID)
		s.Require().True(ok)
		s.Equal(models.BondPosted, guardian.BondStatus(s.now))
		s.Equal([]string{string(models.EventGuardianBondPosted)}, s.pendingTypes())
	})
}

func (s *ServiceSuite) TestFileAnnualReport() {
	g := s.create()
	guardianID := g.Guardians[0].GuardianID
	due := g.Guardians[0].Reporting.NextReportDue
	sections := []string{"ward_welfare", "living_situation", "education", "financial_summary"}

	s.Run("rejects a premature filing", func() {
		_, err := s.svc.FileAnnualReport(s.ctx, g.ID, guardianID, compliance.ReportAnnualWelfare,
			due.AddDate(0, 0, -31), "SUBMITTED", sections)
		s.Require().Error(err)
		s.ErrorIs(err, compliance.ErrComplianceDeadline)
	})

	s.Run("rejects missing sections", func() {
		_, err := s.svc.FileAnnualReport(s.ctx, g.ID, guardianID, compliance.ReportAnnualWelfare,
			due, "SUBMITTED", sections[:2])
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("accepts a complete filing on the due date", func() {
		s.outbox.Clear()
		updated, err := s.svc.FileAnnualReport(s.ctx, g.ID, guardianID, compliance.ReportAnnualWelfare,
			due, "SUBMITTED", sections)
		s.Require().NoError(err)

		guardian, _ := updated.Guardian(guardianID)
		s.Equal(due.AddDate(0, 12, 0), guardian.Reporting.NextReportDue)
		s.Equal([]string{string(models.EventAnnualReportFiled)}, s.pendingTypes())
	})
}

func (s *ServiceSuite) TestUpdateWardInfoDissolution() {
	g := s.create()
	s.outbox.Clear()

	age := 18
	updated, err := s.svc.UpdateWardInfo(s.ctx, g.ID, models.WardInfoPatch{CurrentAge: &age, UpdatedAt: s.now})
	s.Require().NoError(err)
	s.False(updated.IsActive)

	s.Equal([]string{
		string(models.EventWardMajorityReached),
		string(models.EventGuardianshipDissolved),
	}, s.pendingTypes())
}

func (s *ServiceSuite) TestCheckCompliance() {
	g := s.create()
	guardianID := g.Guardians[0].GuardianID
	_, err := s.svc.GrantPropertyPowers(s.ctx, g.ID, guardianID)
	s.Require().NoError(err)

	checked, err := s.svc.CheckCompliance(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(checked.ComplianceWarnings)
	s.Require().NotNil(checked.LastComplianceCheck)
	s.Equal(s.now, *checked.LastComplianceCheck)
}

func (s *ServiceSuite) TestCheckActivation() {
	g := s.create()

	err := s.svc.CheckActivation(s.ctx, g.ID, compliance.JurisdictionStatutory)
	s.ErrorIs(err, compliance.ErrMissingCourtApproval)

	s.NoError(s.svc.CheckActivation(s.ctx, g.ID, compliance.JurisdictionCustomary))
}

func (s *ServiceSuite) TestGetComplianceStatus() {
	g := s.create()

	status, err := s.svc.GetComplianceStatus(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(g.ID.String(), status.Projection.ID)
	s.NotEmpty(status.Deadlines)
	s.Equal(s.now, status.ComputedAt)
}

func (s *ServiceSuite) TestGetCalendar() {
	g := s.create()

	cal, err := s.svc.GetCalendar(s.ctx, g.ID, s.now.Year(), 0)
	s.Require().NoError(err)
	s.Equal(s.now.Year(), cal.Year)
}

func (s *ServiceSuite) TestGetComplianceScore() {
	g := s.create()

	score, err := s.svc.GetComplianceScore(s.ctx, g.ID, nil)
	s.Require().NoError(err)
	s.Equal(100, score.Overall)
	s.Equal(compliance.TrendStable, score.Trend)
}

// conflictStore wraps the in-memory store and fails every versioned save with
// a version conflict.
type conflictStore struct {
	*store.InMemory
}

func (c *conflictStore) Save(ctx context.Context, g *models.Guardianship, expectedVersion int64) error {
	if expectedVersion > 0 {
		return &store.VersionConflictError{GuardianshipID: g.ID, Expected: expectedVersion, Actual: expectedVersion + 1}
	}
	return c.InMemory.Save(ctx, g, expectedVersion)
}

func (s *ServiceSuite) TestVersionConflictSurfaces() {
	engine := compliance.NewEngine()
	svc := service.New(&conflictStore{s.store}, s.outbox, service.NoopRunner{}, engine, compliance.NewPolicy(engine),
		slog.New(slog.DiscardHandler),
		service.WithClock(func() time.Time { return s.now }),
	)

	g, _, err := svc.Create(s.ctx, s.createParams())
	s.Require().NoError(err)

	_, err = svc.CheckCompliance(s.ctx, g.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
