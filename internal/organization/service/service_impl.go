package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/clock"
	membershipdomain "github.com/gatherly/gatherly/internal/membership/domain"
	"github.com/gatherly/gatherly/internal/organization/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	repo   domain.Repository
	ledger membershipdomain.Repository
	genID  *snowflake.Node
}

func NewService(db *gorm.DB, log *zap.Logger, clk clock.Clock, repo domain.Repository, ledger membershipdomain.Repository, genID *snowflake.Node) domain.Service {
	return &service{
		db:     db,
		log:    log,
		clock:  clk,
		repo:   repo,
		ledger: ledger,
		genID:  genID,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	org := domain.Organization{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Address:     strings.TrimSpace(req.Address),
		Phone:       strings.TrimSpace(req.Phone),
		Icon:        req.Icon,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, org); err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("name", org.Name),
	)

	return &org, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context) ([]domain.Organization, error) {
	return s.repo.List(ctx)
}

func (s *service) Update(ctx context.Context, id snowflake.ID, patch domain.Patch) (*domain.Organization, error) {
	org, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(org)
	if strings.TrimSpace(org.Name) == "" {
		return nil, domain.ErrInvalidName
	}
	org.UpdatedAt = s.clock.Now()

	if err := s.repo.Save(ctx, *org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.WithTx(tx).RemoveAllForOrg(ctx, id); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info("organization deleted", zap.String("org_id", id.String()))
	return nil
}
