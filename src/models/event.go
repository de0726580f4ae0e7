package models

import (
	"strm/src/types"
	"time"
)

// Event rows are read-only in this service; the catalog is managed elsewhere.
// EndsAt keys ticket expiry.
type Event struct {
	ID       uint      `json:"id"`
	Name     string    `json:"name,omitempty"`
	Location string    `json:"location,omitempty"`
	StartsAt time.Time `json:"starts_at,omitempty"`
	EndsAt   time.Time `json:"ends_at,omitempty"`
	Status   string    `gorm:"default:'open'" json:"status,omitempty"`

	types.Timestamps
}
