package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/gatherly/internal/invitation/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, token domain.Token) error {
	return r.db.WithContext(ctx).Create(&token).Error
}

func (r *repository) Get(ctx context.Context, id string) (*domain.Token, error) {
	var token domain.Token
	err := r.db.WithContext(ctx).First(&token, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *repository) Consume(ctx context.Context, id string, at time.Time) (*domain.Token, error) {
	// The conditional update is the single-use gate: of any number of
	// concurrent consumers exactly one observes rows_affected == 1.
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invitation_tokens SET consumed = ?, consumed_at = ? WHERE id = ? AND consumed = ?`,
		true, at, id, false,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		token, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if token.Consumed {
			return nil, domain.ErrTokenConsumed
		}
		return nil, domain.ErrTokenNotFound
	}
	return r.Get(ctx, id)
}
