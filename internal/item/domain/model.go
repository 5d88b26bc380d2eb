package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Item is a catalog template. Line items copy its name and price by value.
type Item struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Description *string      `json:"description,omitempty" gorm:"type:text"`
	Price       int64        `json:"price" gorm:"not null;default:0"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Item) TableName() string { return "items" }
