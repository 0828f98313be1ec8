package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/account/domain"
	"github.com/gatherly/gatherly/internal/clock"
	membershipdomain "github.com/gatherly/gatherly/internal/membership/domain"
	"github.com/gatherly/gatherly/pkg/db"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
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

func NewService(conn *gorm.DB, log *zap.Logger, clk clock.Clock, repo domain.Repository, ledger membershipdomain.Repository, genID *snowflake.Node) domain.Service {
	return &service{
		db:     conn,
		log:    log,
		clock:  clk,
		repo:   repo,
		ledger: ledger,
		genID:  genID,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}

	secret := ""
	if strings.TrimSpace(req.Secret) != "" {
		hashed, err := hashSecret(req.Secret)
		if err != nil {
			return nil, err
		}
		secret = hashed
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:        s.genID.Generate(),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		Secret:    secret,
		Icon:      req.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info("account created", zap.String("account_id", account.ID.String()))
	return &account, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

func (s *service) Update(ctx context.Context, id snowflake.ID, patch domain.Patch) (*domain.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(account)
	account.Email = normalizeEmail(account.Email)
	if account.Email == "" {
		return nil, domain.ErrInvalidEmail
	}

	if patch.Secret != nil {
		if *patch.Secret == "" {
			account.Secret = ""
		} else {
			hashed, err := hashSecret(*patch.Secret)
			if err != nil {
				return nil, err
			}
			account.Secret = hashed
		}
	}

	account.UpdatedAt = s.clock.Now()

	if err := s.repo.Save(ctx, *account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return account, nil
}

func (s *service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.WithTx(tx).RemoveAllForAccount(ctx, id); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info("account deleted", zap.String("account_id", id.String()))
	return nil
}

func (s *service) VerifySecret(ctx context.Context, id snowflake.ID, secret string) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return bcrypt.CompareHashAndPassword([]byte(account.Secret), []byte(secret))
}

func hashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
