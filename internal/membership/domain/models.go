// Package domain holds the membership ledger model and the role catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role is an organization-level role. The set is closed; event-level roles
// are a different enumeration and live elsewhere.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleMember    Role = "member"
)

// IsValid reports whether r belongs to the role catalog.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleMember:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole validates a string-encoded role against the catalog.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.IsValid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Membership records that an account holds a role within an organization.
// The role is part of the relation's identity: one account may hold several
// distinct roles in the same organization, but never the same role twice.
type Membership struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_account_role,priority:1" json:"org_id"`
	AccountID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_account_role,priority:2" json:"account_id"`
	Role      Role         `gorm:"type:text;not null;uniqueIndex:ux_org_account_role,priority:3" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "organization_memberships" }
