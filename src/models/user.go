package models

import (
	"strm/src/types"
)

type User struct {
	ID    uint   `gorm:"primarykey" json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `gorm:"default:'student'" json:"role,omitempty"`

	Listings []Listing `gorm:"foreignKey:seller_id" json:"listings,omitempty"`

	types.Timestamps
}
