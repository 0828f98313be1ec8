package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account Account) error
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Save(ctx context.Context, account Account) error
	Delete(ctx context.Context, id snowflake.ID) error
}
