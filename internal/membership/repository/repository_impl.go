package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
	"github.com/gatherly/gatherly/internal/membership/domain"
	organizationdomain "github.com/gatherly/gatherly/internal/organization/domain"
	"github.com/gatherly/gatherly/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) domain.Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Add(ctx context.Context, m domain.Membership) error {
	// The ux_org_account_role index is the uniqueness enforcement; two
	// concurrent adds of the same tuple cannot both pass it.
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrAlreadyMember
		}
		return err
	}
	return nil
}

func (r *repository) RemoveOne(ctx context.Context, orgID, accountID snowflake.ID) error {
	// First-match semantics: exactly one row goes, whatever its role. Callers
	// wanting a full removal use RemoveAllForAccount per organization or call
	// repeatedly.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m domain.Membership
		err := tx.Where("org_id = ? AND account_id = ?", orgID, accountID).
			Order("id ASC").
			First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotAMember
		}
		if err != nil {
			return err
		}
		return tx.Delete(&domain.Membership{}, "id = ?", m.ID).Error
	})
}

func (r *repository) ChangeRole(ctx context.Context, orgID, accountID snowflake.ID, from, to domain.Role) error {
	if from == to {
		// The single-statement path below would be a no-op update; resolve
		// the outcome by hand so the error taxonomy stays intact.
		var count int64
		err := r.db.WithContext(ctx).Model(&domain.Membership{}).
			Where("org_id = ? AND account_id = ? AND role = ?", orgID, accountID, from).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotAMember
		}
		return domain.ErrAlreadyMember
	}

	// One UPDATE mutates the matched row in place; the unique index rejects
	// it when the target role is already held, so no observer ever sees a
	// duplicate or a missing pair of rows.
	res := r.db.WithContext(ctx).Exec(
		`UPDATE organization_memberships SET role = ? WHERE org_id = ? AND account_id = ? AND role = ?`,
		to, orgID, accountID, from,
	)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return domain.ErrAlreadyMember
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotAMember
	}
	return nil
}

func (r *repository) ListAccounts(ctx context.Context, orgID snowflake.ID) ([]accountdomain.Account, error) {
	var accounts []accountdomain.Account
	err := r.db.WithContext(ctx).Raw(
		`SELECT DISTINCT a.*
		 FROM accounts a
		 JOIN organization_memberships m ON m.account_id = a.id
		 WHERE m.org_id = ?
		 ORDER BY a.id ASC`,
		orgID,
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) ManagedOrganizations(ctx context.Context, accountID snowflake.ID) ([]organizationdomain.Organization, error) {
	var orgs []organizationdomain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.*
		 FROM organizations o
		 JOIN organization_memberships m ON m.org_id = o.id
		 WHERE m.account_id = ? AND m.role = ?
		 ORDER BY o.created_at ASC`,
		accountID, domain.RoleAdmin,
	).Scan(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repository) RemoveAllForOrg(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.Membership{}, "org_id = ?", orgID).Error
}

func (r *repository) RemoveAllForAccount(ctx context.Context, accountID snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.Membership{}, "account_id = ?", accountID).Error
}
