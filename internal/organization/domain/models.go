// Package domain contains the tenant root model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is the tenant every other row belongs to.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"size:191;not null;index" json:"slug"`
	Currency  string       `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
