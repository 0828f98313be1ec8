package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
	accountrepo "github.com/gatherly/gatherly/internal/account/repository"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/config"
	invitationdomain "github.com/gatherly/gatherly/internal/invitation/domain"
	invitationrepo "github.com/gatherly/gatherly/internal/invitation/repository"
	"github.com/gatherly/gatherly/internal/membership/domain"
	membershiprepo "github.com/gatherly/gatherly/internal/membership/repository"
	obsmetrics "github.com/gatherly/gatherly/internal/observability/metrics"
	organizationdomain "github.com/gatherly/gatherly/internal/organization/domain"
	organizationrepo "github.com/gatherly/gatherly/internal/organization/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type sentMail struct {
	to       []string
	template string
	data     interface{}
}

// stubDispatcher records outbound mail and optionally fails every send.
type stubDispatcher struct {
	mu   sync.Mutex
	fail error
	sent []sentMail
}

func (d *stubDispatcher) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return d.fail
}

func (d *stubDispatcher) SendTemplate(ctx context.Context, to []string, templateName string, data interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.sent = append(d.sent, sentMail{to: to, template: templateName, data: data})
	return nil
}

type env struct {
	conn       *gorm.DB
	svc        domain.Service
	clk        *clock.FakeClock
	tokens     invitationdomain.Repository
	node       *snowflake.Node
	dispatcher *stubDispatcher

	orgID  snowflake.ID
	acctID snowflake.ID
}

type envOption func(*config.Config, *stubDispatcher)

func withInviteTTL(ttl time.Duration) envOption {
	return func(cfg *config.Config, _ *stubDispatcher) { cfg.InviteTTL = ttl }
}

func withStrictOrg() envOption {
	return func(cfg *config.Config, _ *stubDispatcher) { cfg.InviteStrictOrg = true }
}

func withDispatchFailure(err error) envOption {
	return func(_ *config.Config, d *stubDispatcher) { d.fail = err }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&organizationdomain.Organization{},
		&accountdomain.Account{},
		&domain.Membership{},
		&invitationdomain.Token{},
	))

	// Serialize transactions on a single connection so concurrent accepts
	// contend in the pool instead of tripping sqlite busy errors.
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{BaseURL: "http://localhost:8080"}
	dispatcher := &stubDispatcher{}
	for _, opt := range opts {
		opt(&cfg, dispatcher)
	}

	m, err := obsmetrics.New(obsmetrics.Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	tokens := invitationrepo.NewRepository(conn)

	e := &env{
		conn:       conn,
		clk:        clk,
		tokens:     tokens,
		node:       node,
		dispatcher: dispatcher,
	}
	e.svc = NewService(
		conn,
		zaptest.NewLogger(t),
		clk,
		m,
		membershiprepo.NewRepository(conn),
		tokens,
		organizationrepo.NewRepository(conn),
		accountrepo.NewRepository(conn),
		dispatcher,
		node,
		cfg,
	)
	e.orgID = e.createOrg(t, "Gatherly HQ")
	e.acctID = e.createAccount(t, "alice@example.com")
	return e
}

func (e *env) createOrg(t *testing.T, name string) snowflake.ID {
	t.Helper()
	org := organizationdomain.Organization{
		ID:        e.node.Generate(),
		Name:      name,
		CreatedAt: e.clk.Now(),
		UpdatedAt: e.clk.Now(),
	}
	require.NoError(t, e.conn.Create(&org).Error)
	return org.ID
}

func (e *env) createAccount(t *testing.T, email string) snowflake.ID {
	t.Helper()
	account := accountdomain.Account{
		ID:        e.node.Generate(),
		Email:     email,
		CreatedAt: e.clk.Now(),
		UpdatedAt: e.clk.Now(),
	}
	require.NoError(t, e.conn.Create(&account).Error)
	return account.ID
}

func (e *env) invite(t *testing.T, role string) string {
	t.Helper()
	result, err := e.svc.SendInvitation(context.Background(), e.orgID, "invitee@example.com", role)
	require.NoError(t, err)
	require.NotNil(t, result.Token)
	return result.Token.ID
}

func (e *env) memberships(t *testing.T, orgID, accountID snowflake.ID) []domain.Membership {
	t.Helper()
	var rows []domain.Membership
	require.NoError(t, e.conn.
		Where("org_id = ? AND account_id = ?", orgID, accountID).
		Find(&rows).Error)
	return rows
}

func TestSendInvitation(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a token and dispatches mail", func(t *testing.T) {
		e := newEnv(t)

		result, err := e.svc.SendInvitation(ctx, e.orgID, "invitee@example.com", "organizer")
		require.NoError(t, err)
		require.True(t, result.Delivered())
		assert.Equal(t, "organizer", result.Token.Role)
		assert.Equal(t, e.orgID, result.Token.OrgID)
		assert.False(t, result.Token.Consumed)

		require.Len(t, e.dispatcher.sent, 1)
		assert.Equal(t, []string{"invitee@example.com"}, e.dispatcher.sent[0].to)
		assert.Equal(t, "organization_invite", e.dispatcher.sent[0].template)
	})

	t.Run("does not validate the role at issuance", func(t *testing.T) {
		e := newEnv(t)

		result, err := e.svc.SendInvitation(ctx, e.orgID, "invitee@example.com", "superuser")
		require.NoError(t, err)
		assert.Equal(t, "superuser", result.Token.Role)
	})

	t.Run("unknown organization", func(t *testing.T) {
		e := newEnv(t)

		_, err := e.svc.SendInvitation(ctx, e.node.Generate(), "invitee@example.com", "member")
		assert.ErrorIs(t, err, organizationdomain.ErrOrganizationNotFound)
	})

	t.Run("dispatch failure keeps the token valid", func(t *testing.T) {
		smtpDown := errors.New("smtp connect refused")
		e := newEnv(t, withDispatchFailure(smtpDown))

		result, err := e.svc.SendInvitation(ctx, e.orgID, "invitee@example.com", "member")
		require.NoError(t, err)
		assert.False(t, result.Delivered())
		assert.ErrorIs(t, result.DispatchError, smtpDown)

		// The undelivered token still admits the account.
		require.NoError(t, e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, result.Token.ID))
		assert.Len(t, e.memberships(t, e.orgID, e.acctID), 1)
	})
}

func TestAcceptInvitation(t *testing.T) {
	ctx := context.Background()

	t.Run("grants the token's role", func(t *testing.T) {
		e := newEnv(t)
		tokenID := e.invite(t, "organizer")

		require.NoError(t, e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, tokenID))

		rows := e.memberships(t, e.orgID, e.acctID)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.RoleOrganizer, rows[0].Role)

		token, err := e.tokens.Get(ctx, tokenID)
		require.NoError(t, err)
		assert.True(t, token.Consumed)
		require.NotNil(t, token.ConsumedAt)
	})

	t.Run("token is single use", func(t *testing.T) {
		e := newEnv(t)
		tokenID := e.invite(t, "member")
		require.NoError(t, e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, tokenID))

		bob := e.createAccount(t, "bob@example.com")
		err := e.svc.AcceptInvitation(ctx, e.orgID, bob, tokenID)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		assert.ErrorIs(t, err, invitationdomain.ErrTokenConsumed)
		assert.Empty(t, e.memberships(t, e.orgID, bob))
	})

	t.Run("unknown token", func(t *testing.T) {
		e := newEnv(t)

		err := e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, "no-such-token")
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		assert.ErrorIs(t, err, invitationdomain.ErrTokenNotFound)
	})

	t.Run("unknown role is rejected and the token survives", func(t *testing.T) {
		e := newEnv(t)
		tokenID := e.invite(t, "superuser")

		err := e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, tokenID)
		assert.ErrorIs(t, err, domain.ErrInvalidRole)

		token, getErr := e.tokens.Get(ctx, tokenID)
		require.NoError(t, getErr)
		assert.False(t, token.Consumed)
	})

	t.Run("failed add leaves the token retryable", func(t *testing.T) {
		e := newEnv(t)
		tokenID := e.invite(t, "member")
		require.NoError(t, e.conn.Create(&domain.Membership{
			ID:        e.node.Generate(),
			OrgID:     e.orgID,
			AccountID: e.acctID,
			Role:      domain.RoleMember,
			CreatedAt: e.clk.Now(),
		}).Error)

		err := e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, tokenID)
		assert.ErrorIs(t, err, domain.ErrAlreadyMember)

		token, getErr := e.tokens.Get(ctx, tokenID)
		require.NoError(t, getErr)
		assert.False(t, token.Consumed)

		// The same token then admits a different account.
		bob := e.createAccount(t, "bob@example.com")
		require.NoError(t, e.svc.AcceptInvitation(ctx, e.orgID, bob, tokenID))
		assert.Len(t, e.memberships(t, e.orgID, bob), 1)
	})

	t.Run("unknown organization or account", func(t *testing.T) {
		e := newEnv(t)
		tokenID := e.invite(t, "member")

		assert.ErrorIs(t,
			e.svc.AcceptInvitation(ctx, e.node.Generate(), e.acctID, tokenID),
			organizationdomain.ErrOrganizationNotFound)
		assert.ErrorIs(t,
			e.svc.AcceptInvitation(ctx, e.orgID, e.node.Generate(), tokenID),
			accountdomain.ErrAccountNotFound)

		token, err := e.tokens.Get(ctx, tokenID)
		require.NoError(t, err)
		assert.False(t, token.Consumed)
	})
}

func TestConcurrentAcceptsAdmitExactlyOne(t *testing.T) {
	e := newEnv(t)
	tokenID := e.invite(t, "member")

	const accepters = 8
	accounts := make([]snowflake.ID, accepters)
	for i := range accounts {
		accounts[i] = e.createAccount(t, fmt.Sprintf("racer%d@example.com", i))
	}

	errs := make([]error, accepters)
	var wg sync.WaitGroup
	for i := 0; i < accepters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.svc.AcceptInvitation(context.Background(), e.orgID, accounts[i], tokenID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	}
	assert.Equal(t, 1, succeeded)

	var total int64
	require.NoError(t, e.conn.Model(&domain.Membership{}).
		Where("org_id = ?", e.orgID).
		Count(&total).Error)
	assert.EqualValues(t, 1, total)
}

func TestAcceptInvitationExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("expired token is rejected", func(t *testing.T) {
		e := newEnv(t, withInviteTTL(time.Hour))
		tokenID := e.invite(t, "member")

		e.clk.Advance(2 * time.Hour)
		err := e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, tokenID)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		assert.ErrorIs(t, err, invitationdomain.ErrTokenExpired)

		// Expiry is a rejection, not a consumption.
		token, getErr := e.tokens.Get(ctx, tokenID)
		require.NoError(t, getErr)
		assert.False(t, token.Consumed)
	})

	t.Run("token at exactly the ttl boundary is accepted", func(t *testing.T) {
		e := newEnv(t, withInviteTTL(time.Hour))
		tokenID := e.invite(t, "member")

		e.clk.Advance(time.Hour)
		require.NoError(t, e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, tokenID))
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		e := newEnv(t)
		tokenID := e.invite(t, "member")

		e.clk.Advance(365 * 24 * time.Hour)
		require.NoError(t, e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, tokenID))
	})
}

func TestAcceptInvitationOrgBinding(t *testing.T) {
	ctx := context.Background()

	t.Run("voucher mode admits into any organization", func(t *testing.T) {
		e := newEnv(t)
		tokenID := e.invite(t, "member")
		other := e.createOrg(t, "Other Org")

		require.NoError(t, e.svc.AcceptInvitation(ctx, other, e.acctID, tokenID))
		assert.Len(t, e.memberships(t, other, e.acctID), 1)
		assert.Empty(t, e.memberships(t, e.orgID, e.acctID))
	})

	t.Run("strict mode rejects a foreign organization", func(t *testing.T) {
		e := newEnv(t, withStrictOrg())
		tokenID := e.invite(t, "member")
		other := e.createOrg(t, "Other Org")

		err := e.svc.AcceptInvitation(ctx, other, e.acctID, tokenID)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		assert.ErrorIs(t, err, invitationdomain.ErrTokenMismatch)

		// The rejected accept rolls back; the minted organization still works.
		require.NoError(t, e.svc.AcceptInvitation(ctx, e.orgID, e.acctID, tokenID))
	})
}

func TestRemoveAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("removes a single row", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.conn.Create(&domain.Membership{
			ID:        e.node.Generate(),
			OrgID:     e.orgID,
			AccountID: e.acctID,
			Role:      domain.RoleMember,
			CreatedAt: e.clk.Now(),
		}).Error)

		require.NoError(t, e.svc.RemoveAccount(ctx, e.orgID, e.acctID))
		assert.Empty(t, e.memberships(t, e.orgID, e.acctID))
	})

	t.Run("not a member", func(t *testing.T) {
		e := newEnv(t)
		assert.ErrorIs(t, e.svc.RemoveAccount(ctx, e.orgID, e.acctID), domain.ErrNotAMember)
		assert.ErrorIs(t, e.svc.LeaveOrganization(ctx, e.orgID, e.acctID), domain.ErrNotAMember)
	})

	t.Run("unknown organization", func(t *testing.T) {
		e := newEnv(t)
		assert.ErrorIs(t,
			e.svc.RemoveAccount(ctx, e.node.Generate(), e.acctID),
			organizationdomain.ErrOrganizationNotFound)
	})
}

func TestChangeRoleValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	assert.ErrorIs(t,
		e.svc.ChangeRole(ctx, e.orgID, e.acctID, domain.Role("superuser"), domain.RoleAdmin),
		domain.ErrInvalidRole)
	assert.ErrorIs(t,
		e.svc.ChangeRole(ctx, e.orgID, e.acctID, domain.RoleMember, domain.Role("")),
		domain.ErrInvalidRole)
	assert.ErrorIs(t,
		e.svc.ChangeRole(ctx, e.orgID, e.acctID, domain.RoleMember, domain.RoleAdmin),
		domain.ErrNotAMember)
}

func TestListAccountsRequiresOrganization(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.ListAccounts(context.Background(), e.node.Generate())
	assert.ErrorIs(t, err, organizationdomain.ErrOrganizationNotFound)
}

func TestManagedOrganizationsRequiresAccount(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.ManagedOrganizations(context.Background(), e.node.Generate())
	assert.ErrorIs(t, err, accountdomain.ErrAccountNotFound)
}
