package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/config"
	invitationdomain "github.com/gatherly/gatherly/internal/invitation/domain"
	"github.com/gatherly/gatherly/internal/membership/domain"
	obsmetrics "github.com/gatherly/gatherly/internal/observability/metrics"
	organizationdomain "github.com/gatherly/gatherly/internal/organization/domain"
	"github.com/gatherly/gatherly/internal/providers/email"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	metrics *obsmetrics.Metrics
	ledger  domain.Repository
	tokens  invitationdomain.Repository
	orgs    organizationdomain.Repository
	accts   accountdomain.Repository
	email   email.Provider
	genID   *snowflake.Node

	inviteTTL       time.Duration
	inviteStrictOrg bool
	baseURL         string
}

func NewService(
	conn *gorm.DB,
	log *zap.Logger,
	clk clock.Clock,
	metrics *obsmetrics.Metrics,
	ledger domain.Repository,
	tokens invitationdomain.Repository,
	orgs organizationdomain.Repository,
	accts accountdomain.Repository,
	dispatcher email.Provider,
	genID *snowflake.Node,
	cfg config.Config,
) domain.Service {
	return &service{
		db:              conn,
		log:             log,
		clock:           clk,
		metrics:         metrics,
		ledger:          ledger,
		tokens:          tokens,
		orgs:            orgs,
		accts:           accts,
		email:           dispatcher,
		genID:           genID,
		inviteTTL:       cfg.InviteTTL,
		inviteStrictOrg: cfg.InviteStrictOrg,
		baseURL:         cfg.BaseURL,
	}
}

func (s *service) SendInvitation(ctx context.Context, orgID snowflake.ID, emailAddr, role string) (*domain.SendInvitationResult, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	// Issuance is deliberately lenient about the role; the catalog check
	// runs when the token is accepted.
	token := invitationdomain.Token{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Email:     emailAddr,
		Role:      role,
		CreatedAt: s.clock.Now(),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}

	s.metrics.RecordInvitationIssued(ctx, role)
	s.log.Info("invitation issued",
		zap.String("org_id", orgID.String()),
		zap.String("role", role),
	)

	result := &domain.SendInvitationResult{Token: &token}
	if err := s.dispatchInvitation(ctx, org, emailAddr, token); err != nil {
		// An issued-but-undelivered token stays valid; the failure is
		// surfaced next to the token, not instead of it.
		s.log.Warn("invitation email dispatch failed",
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
		result.DispatchError = err
	}

	return result, nil
}

func (s *service) dispatchInvitation(ctx context.Context, org *organizationdomain.Organization, to string, token invitationdomain.Token) error {
	acceptURL := fmt.Sprintf("%s/organizations/%s/join?token=%s", s.baseURL, org.ID.String(), token.ID)
	return s.email.SendTemplate(ctx, []string{to}, "organization_invite", map[string]interface{}{
		"org_name":   org.Name,
		"role":       token.Role,
		"accept_url": acceptURL,
	})
}

func (s *service) AcceptInvitation(ctx context.Context, orgID, accountID snowflake.ID, tokenID string) error {
	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		return err
	}
	if _, err := s.accts.GetByID(ctx, accountID); err != nil {
		return err
	}

	var role domain.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Consuming and adding inside one transaction keeps the single-use
		// guarantee under concurrent accepts and leaves the token unconsumed
		// whenever the ledger add fails.
		token, err := s.tokens.WithTx(tx).Consume(ctx, tokenID, s.clock.Now())
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
		}
		if token.ExpiresBy(s.clock.Now(), s.inviteTTL) {
			return fmt.Errorf("%w: %w", domain.ErrInvalidToken, invitationdomain.ErrTokenExpired)
		}
		if s.inviteStrictOrg && token.OrgID != orgID {
			return fmt.Errorf("%w: %w", domain.ErrInvalidToken, invitationdomain.ErrTokenMismatch)
		}

		role, err = domain.ParseRole(token.Role)
		if err != nil {
			return err
		}

		return s.ledger.WithTx(tx).Add(ctx, domain.Membership{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			AccountID: accountID,
			Role:      role,
			CreatedAt: s.clock.Now(),
		})
	})
	if err != nil {
		s.metrics.RecordInvitationAccepted(ctx, role.String(), "error")
		return err
	}

	s.metrics.RecordInvitationAccepted(ctx, role.String(), "ok")
	s.log.Info("invitation accepted",
		zap.String("org_id", orgID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("role", role.String()),
	)
	return nil
}

func (s *service) RemoveAccount(ctx context.Context, orgID, accountID snowflake.ID) error {
	return s.removeMembership(ctx, orgID, accountID, "admin")
}

func (s *service) LeaveOrganization(ctx context.Context, orgID, accountID snowflake.ID) error {
	return s.removeMembership(ctx, orgID, accountID, "self")
}

// removeMembership backs both removal flows; the initiator only matters to
// the log line.
func (s *service) removeMembership(ctx context.Context, orgID, accountID snowflake.ID, initiator string) error {
	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		return err
	}
	if _, err := s.accts.GetByID(ctx, accountID); err != nil {
		return err
	}

	if err := s.ledger.RemoveOne(ctx, orgID, accountID); err != nil {
		return err
	}

	s.metrics.RecordMembershipChange(ctx, "remove")
	s.log.Info("membership removed",
		zap.String("org_id", orgID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("initiator", initiator),
	)
	return nil
}

func (s *service) ChangeRole(ctx context.Context, orgID, accountID snowflake.ID, from, to domain.Role) error {
	if !from.IsValid() || !to.IsValid() {
		return domain.ErrInvalidRole
	}
	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		return err
	}
	if _, err := s.accts.GetByID(ctx, accountID); err != nil {
		return err
	}

	if err := s.ledger.ChangeRole(ctx, orgID, accountID, from, to); err != nil {
		return err
	}

	s.metrics.RecordMembershipChange(ctx, "change_role")
	s.log.Info("membership role changed",
		zap.String("org_id", orgID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	return nil
}

func (s *service) ListAccounts(ctx context.Context, orgID snowflake.ID) ([]accountdomain.Account, error) {
	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		return nil, err
	}
	return s.ledger.ListAccounts(ctx, orgID)
}

func (s *service) ManagedOrganizations(ctx context.Context, accountID snowflake.ID) ([]organizationdomain.Organization, error) {
	if _, err := s.accts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.ledger.ManagedOrganizations(ctx, accountID)
}
