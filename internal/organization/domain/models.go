// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is an account grouping with organization-scoped roles.
type Organization struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	Address     string       `gorm:"type:text" json:"address"`
	Phone       string       `gorm:"type:text" json:"phone"`
	Icon        string       `gorm:"type:text" json:"icon"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Patch enumerates requested field changes. A nil field means "leave alone";
// a non-nil pointer to an empty string clears the field. This distinction is
// why the patch is not a plain struct of values.
type Patch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	Icon        *string `json:"icon"`
}

// Apply copies the present fields onto the organization.
func (p Patch) Apply(org *Organization) {
	if p.Name != nil {
		org.Name = *p.Name
	}
	if p.Description != nil {
		org.Description = *p.Description
	}
	if p.Address != nil {
		org.Address = *p.Address
	}
	if p.Phone != nil {
		org.Phone = *p.Phone
	}
	if p.Icon != nil {
		org.Icon = *p.Icon
	}
}
