//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"walezi/internal/guardianship/models"
	"walezi/internal/guardianship/store"
	id "walezi/pkg/domain"
	"walezi/pkg/platform/sentinel"
	"walezi/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite

	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), store.Schema)
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.postgres.DB.ExecContext(context.Background(), "TRUNCATE TABLE guardianships")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newGuardianship() *models.Guardianship {
	now := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	g, _, err := models.NewGuardianship(models.CreateParams{
		Ward: models.WardInfo{
			WardID:      id.NewWardID(),
			DateOfBirth: now.AddDate(-9, 0, 0),
			CurrentAge:  9,
		},
		GuardianID:      id.NewGuardianID(),
		Eligibility:     models.GuardianEligibilityInfo{Age: 35},
		Source:          models.AppointmentFamily,
		AppointmentDate: now,
	})
	s.Require().NoError(err)
	return g
}

func (s *PostgresStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	g := s.newGuardianship()

	s.Require().NoError(s.store.Save(ctx, g, 0))

	loaded, err := s.store.FindByID(ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(g.ID, loaded.ID)
	s.Equal(g.Version, loaded.Version)
	s.Len(loaded.Guardians, 1)

	_, err = s.store.FindByID(ctx, id.NewGuardianshipID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestVersionedUpdate() {
	ctx := context.Background()
	g := s.newGuardianship()
	s.Require().NoError(s.store.Save(ctx, g, 0))

	previous := g.Version
	g.CheckCompliance(time.Now())
	s.Require().NoError(s.store.Save(ctx, g, previous))

	err := s.store.Save(ctx, g, previous)
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrConflict)

	var conflict *store.VersionConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal(previous, conflict.Expected)
	s.Equal(g.Version, conflict.Actual)
}

func (s *PostgresStoreSuite) TestDuplicateInsertConflicts() {
	ctx := context.Background()
	g := s.newGuardianship()
	s.Require().NoError(s.store.Save(ctx, g, 0))

	err := s.store.Save(ctx, g, 0)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestListActive() {
	ctx := context.Background()

	active := s.newGuardianship()
	s.Require().NoError(s.store.Save(ctx, active, 0))

	dissolved := s.newGuardianship()
	s.Require().NoError(dissolved.DissolveGuardianship(models.DissolutionVoluntaryClosure, time.Now(), ""))
	s.Require().NoError(s.store.Save(ctx, dissolved, 0))

	listed, err := s.store.ListActive(ctx)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(active.ID, listed[0].ID)
}
