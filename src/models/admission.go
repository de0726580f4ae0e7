package models

import (
	"strm/src/types"
	"time"

	"github.com/google/uuid"
)

// GateScan records one accepted scan at the door. Duplicate scans do not add
// rows; the first row's scanned_at is what gate staff see on a double scan.
type GateScan struct {
	ID        uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	TicketID  string    `gorm:"index" json:"ticket_id"`
	ScannedBy uint      `json:"scanned_by"`
	Result    string    `json:"result,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`

	types.Timestamps
}
