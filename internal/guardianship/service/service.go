// Package service orchestrates guardianship commands: load the aggregate,
// run the command, save with the loaded version, and append drained events
// to the outbox inside the same transaction. Version conflicts surface to
// the caller; the service never retries them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"walezi/internal/compliance"
	"walezi/internal/guardianship/cache"
	"walezi/internal/guardianship/models"
	"walezi/internal/guardianship/store"
	"walezi/internal/platform/metrics"
	id "walezi/pkg/domain"
	dErrors "walezi/pkg/domain-errors"
	"walezi/pkg/platform/outbox"
	"walezi/pkg/platform/sentinel"
)

// Service exposes all mutating commands plus the read-side views.
type Service struct {
	store   store.Store
	outbox  outbox.Store
	tx      TxRunner
	engine  *compliance.Engine
	policy  *compliance.Policy
	cache   *cache.StatusCache
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithCache attaches the optional compliance-status cache.
func WithCache(c *cache.StatusCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics attaches command metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(st store.Store, ob outbox.Store, tx TxRunner, engine *compliance.Engine, policy *compliance.Policy, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		outbox: ob,
		tx:     tx,
		engine: engine,
		policy: policy,
		logger: logger,
		tracer: otel.Tracer("walezi/guardianship"),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create establishes a new guardianship through the validating factory.
// Construction warnings are returned alongside the aggregate; they are
// advisory and already recorded on it.
func (s *Service) Create(ctx context.Context, params models.CreateParams) (*models.Guardianship, []string, error) {
	ctx, span := s.tracer.Start(ctx, "guardianship.create")
	defer span.End()

	g, warnings, err := models.NewGuardianship(params)
	if err != nil {
		s.record("create", err)
		return nil, nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, g, 0); err != nil {
			return s.translateSaveError(err)
		}
		return s.appendEvents(ctx, g)
	})
	s.record("create", err)
	if err != nil {
		return nil, nil, err
	}
	s.logger.InfoContext(ctx, "guardianship created",
		"guardianship_id", g.ID,
		"ward_id", g.Ward.WardID,
		"warnings", len(warnings),
	)
	return g, warnings, nil
}

// AddCoGuardian appoints an additional guardian.
func (s *Service) AddCoGuardian(ctx context.Context, guardianshipID id.GuardianshipID, params models.AddGuardianParams) (*models.Guardianship, error) {
	return s.mutate(ctx, "add_co_guardian", guardianshipID, func(g *models.Guardianship) error {
		return g.AddCoGuardian(params)
	})
}

// ReplaceGuardian swaps one guardian for another, carrying powers over.
func (s *Service) ReplaceGuardian(ctx context.Context, guardianshipID id.GuardianshipID, outgoingID, replacementID id.GuardianID, eligibility models.GuardianEligibilityInfo, reason models.TerminationReason, date time.Time) (*models.Guardianship, error) {
	return s.mutate(ctx, "replace_guardian", guardianshipID, func(g *models.Guardianship) error {
		return g.ReplaceGuardian(outgoingID, replacementID, eligibility, reason, date)
	})
}

// RemoveGuardian terminates one guardian, never the last.
func (s *Service) RemoveGuardian(ctx context.Context, guardianshipID id.GuardianshipID, guardianID id.GuardianID, reason models.TerminationReason, date time.Time) (*models.Guardianship, error) {
	return s.mutate(ctx, "remove_guardian", guardianshipID, func(g *models.Guardianship) error {
		return g.RemoveGuardian(guardianID, reason, date)
	})
}

// UpdateWardInfo applies a registry snapshot; loss of ward eligibility
// dissolves the guardianship automatically.
func (s *Service) UpdateWardInfo(ctx context.Context, guardianshipID id.GuardianshipID, patch models.WardInfoPatch) (*models.Guardianship, error) {
	return s.mutate(ctx, "update_ward_info", guardianshipID, func(g *models.Guardianship) error {
		return g.UpdateWardInfo(patch)
	})
}

// Dissolve is the manual terminal transition, gated by the termination
// policy.
func (s *Service) Dissolve(ctx context.Context, guardianshipID id.GuardianshipID, reason models.DissolutionReason, justification string, date time.Time, courtOrderNumber string) (*models.Guardianship, error) {
	return s.mutate(ctx, "dissolve", guardianshipID, func(g *models.Guardianship) error {
		if err := s.policy.CanTerminateGuardianship(g, justification, s.clock()); err != nil {
			return err
		}
		return g.DissolveGuardianship(reason, date, courtOrderNumber)
	})
}

// PostGuardianBond validates and attaches an S.72 bond.
func (s *Service) PostGuardianBond(ctx context.Context, guardianshipID id.GuardianshipID, guardianID id.GuardianID, provider, policyNumber string, amount decimal.Decimal, issued, expiry time.Time, suretyDetails string, courtApproved decimal.Decimal) (*models.Guardianship, error) {
	bond, err := models.NewBondLedger(provider, policyNumber, amount, issued, expiry, suretyDetails, courtApproved)
	if err != nil {
		s.record("post_bond", err)
		return nil, err
	}
	return s.mutate(ctx, "post_bond", guardianshipID, func(g *models.Guardianship) error {
		return g.PostGuardianBond(guardianID, bond)
	})
}

// FileAnnualReport records an S.73 filing, gated by the submission policy.
func (s *Service) FileAnnualReport(ctx context.Context, guardianshipID id.GuardianshipID, guardianID id.GuardianID, reportType compliance.ReportType, date time.Time, status string, sections []string) (*models.Guardianship, error) {
	return s.mutate(ctx, "file_annual_report", guardianshipID, func(g *models.Guardianship) error {
		if err := s.policy.CanSubmitComplianceReport(g, reportType, date, sections); err != nil {
			return err
		}
		return g.FileAnnualReport(guardianID, date, status)
	})
}

// GrantPropertyPowers upgrades a guardian's powers grant.
func (s *Service) GrantPropertyPowers(ctx context.Context, guardianshipID id.GuardianshipID, guardianID id.GuardianID) (*models.Guardianship, error) {
	return s.mutate(ctx, "grant_property_powers", guardianshipID, func(g *models.Guardianship) error {
		return g.GrantPropertyPowers(guardianID)
	})
}

// UpdateGuardianAllowance replaces a guardian's annual allowance.
func (s *Service) UpdateGuardianAllowance(ctx context.Context, guardianshipID id.GuardianshipID, guardianID id.GuardianID, allowance decimal.Decimal) (*models.Guardianship, error) {
	return s.mutate(ctx, "update_allowance", guardianshipID, func(g *models.Guardianship) error {
		return g.UpdateGuardianAllowance(guardianID, allowance)
	})
}

// CheckCompliance recomputes advisory warnings and persists them.
func (s *Service) CheckCompliance(ctx context.Context, guardianshipID id.GuardianshipID) (*models.Guardianship, error) {
	g, err := s.mutate(ctx, "check_compliance", guardianshipID, func(g *models.Guardianship) error {
		g.CheckCompliance(s.clock())
		return nil
	})
	if err == nil && s.metrics != nil {
		s.metrics.ComplianceChecks.Inc()
	}
	return g, err
}

// CheckActivation runs the activation policy gate without mutating state.
func (s *Service) CheckActivation(ctx context.Context, guardianshipID id.GuardianshipID, jurisdiction compliance.Jurisdiction) error {
	g, err := s.Get(ctx, guardianshipID)
	if err != nil {
		return err
	}
	return s.policy.CanActivateGuardianship(g, jurisdiction, s.clock())
}

// Get loads an aggregate, dissolved ones included.
func (s *Service) Get(ctx context.Context, guardianshipID id.GuardianshipID) (*models.Guardianship, error) {
	g, err := s.store.FindByID(ctx, guardianshipID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "guardianship not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load guardianship")
	}
	return g, nil
}

// ComplianceStatus is the cached read-side view for dashboards.
type ComplianceStatus struct {
	Projection models.GuardianshipProjection `json:"projection"`
	Deadlines  []compliance.Deadline         `json:"deadlines"`
	Penalties  compliance.PenaltyAssessment  `json:"penalties"`
	ComputedAt time.Time                     `json:"computed_at"`
}

// GetComplianceStatus renders projection, deadlines, and penalties, served
// from cache when fresh.
func (s *Service) GetComplianceStatus(ctx context.Context, guardianshipID id.GuardianshipID) (ComplianceStatus, error) {
	var status ComplianceStatus
	if err := s.cache.Get(ctx, guardianshipID, &status); err == nil {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return status, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	g, err := s.Get(ctx, guardianshipID)
	if err != nil {
		return ComplianceStatus{}, err
	}
	now := s.clock()
	status = ComplianceStatus{
		Projection: g.Project(now),
		Deadlines:  s.engine.CalculateComplianceDeadlines(g, now),
		Penalties:  s.engine.CalculatePenalties(g, now),
		ComputedAt: now,
	}
	s.cache.Set(ctx, guardianshipID, status)
	return status, nil
}

// GetComplianceScore scores the guardianship over externally-supplied checks.
func (s *Service) GetComplianceScore(ctx context.Context, guardianshipID id.GuardianshipID, checks []compliance.ComplianceCheck) (compliance.Score, error) {
	g, err := s.Get(ctx, guardianshipID)
	if err != nil {
		return compliance.Score{}, err
	}
	return s.engine.CalculateComplianceScore(g, checks), nil
}

// GetCalendar renders the compliance calendar for a year or month.
func (s *Service) GetCalendar(ctx context.Context, guardianshipID id.GuardianshipID, year, month int) (compliance.Calendar, error) {
	g, err := s.Get(ctx, guardianshipID)
	if err != nil {
		return compliance.Calendar{}, err
	}
	return s.engine.GenerateComplianceCalendar(g, s.clock(), year, month), nil
}

// mutate is the single write path: load, command, version-checked save,
// outbox append, cache invalidation.
func (s *Service) mutate(ctx context.Context, command string, guardianshipID id.GuardianshipID, fn func(*models.Guardianship) error) (*models.Guardianship, error) {
	ctx, span := s.tracer.Start(ctx, "guardianship."+command)
	defer span.End()

	var g *models.Guardianship
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		loaded, err := s.store.FindByID(ctx, guardianshipID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "guardianship not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load guardianship")
		}
		expected := loaded.Version
		if err := fn(loaded); err != nil {
			return err
		}
		if err := s.store.Save(ctx, loaded, expected); err != nil {
			return s.translateSaveError(err)
		}
		if err := s.appendEvents(ctx, loaded); err != nil {
			return err
		}
		g = loaded
		return nil
	})
	s.record(command, err)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, guardianshipID)
	s.logger.InfoContext(ctx, "guardianship command applied",
		"command", command,
		"guardianship_id", guardianshipID,
		"version", g.Version,
	)
	return g, nil
}

func (s *Service) appendEvents(ctx context.Context, g *models.Guardianship) error {
	events := g.DrainEvents()
	if len(events) == 0 {
		return nil
	}
	records := make([]outbox.Record, 0, len(events))
	for _, event := range events {
		record, err := outbox.NewRecord(event)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode domain event")
		}
		records = append(records, record)
	}
	if err := s.outbox.Append(ctx, records...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append domain events")
	}
	return nil
}

// translateSaveError keeps the conflict details visible: the caller must
// reload and retry, this service never does.
func (s *Service) translateSaveError(err error) error {
	var conflict *store.VersionConflictError
	if errors.As(err, &conflict) {
		if s.metrics != nil {
			s.metrics.VersionConflicts.Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeConflict, "guardianship was modified concurrently; reload and retry")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "guardianship already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save guardianship")
}

func (s *Service) record(command string, err error) {
	if s.metrics != nil {
		s.metrics.RecordCommand(command, err)
	}
}
