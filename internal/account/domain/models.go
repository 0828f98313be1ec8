// Package domain contains persistence models for the account service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account is a person with a unique email address. Memberships reference
// accounts but do not own them. The secret is credential material, stored
// hashed and opaque to the membership engine.
type Account struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName string       `gorm:"type:text" json:"first_name"`
	LastName  string       `gorm:"type:text" json:"last_name"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_accounts_email" json:"email"`
	Secret    string       `gorm:"type:text" json:"-"`
	Icon      string       `gorm:"type:text" json:"icon"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Patch enumerates requested field changes; nil means "leave alone", a
// pointer to the empty string clears the field.
type Patch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Secret    *string `json:"secret"`
	Icon      *string `json:"icon"`
}

// Apply copies the present fields onto the account. The secret is applied by
// the service, which hashes it first.
func (p Patch) Apply(account *Account) {
	if p.FirstName != nil {
		account.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		account.LastName = *p.LastName
	}
	if p.Email != nil {
		account.Email = *p.Email
	}
	if p.Icon != nil {
		account.Icon = *p.Icon
	}
}
