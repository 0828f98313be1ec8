// Package domain holds the invitation token model and store contract.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrTokenNotFound = errors.New("token_not_found")
	ErrTokenConsumed = errors.New("token_consumed")
	ErrTokenExpired  = errors.New("token_expired")
	ErrTokenMismatch = errors.New("token_org_mismatch")
)

// Token is a single-use credential granting the bearer the right to join an
// organization with a pre-assigned role. The id is an opaque unguessable
// string. The role is stored as supplied and only checked against the role
// catalog when the token is accepted.
type Token struct {
	ID         string       `gorm:"primaryKey;type:text" json:"token"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Email      string       `gorm:"type:text" json:"email"`
	Role       string       `gorm:"type:text;not null" json:"role"`
	Consumed   bool         `gorm:"not null;default:false" json:"consumed"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ConsumedAt *time.Time   `json:"consumed_at,omitempty"`
}

// TableName sets the database table name.
func (Token) TableName() string { return "invitation_tokens" }

// ExpiresBy reports whether the token is past its lifetime at the given
// instant. A zero ttl disables expiry.
func (t Token) ExpiresBy(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.After(t.CreatedAt.Add(ttl))
}
