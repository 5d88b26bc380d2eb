package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Customer struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID      `gorm:"not null;index" json:"organization_id"`
	Name         string            `gorm:"not null" json:"name"`
	Email        string            `gorm:"not null;default:''" json:"email"`
	Phone        string            `gorm:"not null;default:''" json:"phone"`
	Address      string            `gorm:"not null;default:''" json:"address"`
	Notes        string            `gorm:"not null;default:''" json:"notes"`
	AssignedToID *snowflake.ID     `gorm:"index" json:"assigned_to_id,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"not null" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
}
