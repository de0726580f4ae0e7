package models

import (
	"strm/src/types"
)

// Listing is a seller's offer to resell one specific ticket. Its id is what
// the transfer record carries as provenance for the sale.
type Listing struct {
	ID       uint                `gorm:"primarykey" json:"id"`
	TicketID string              `gorm:"index" json:"ticket_id"`
	EventID  uint                `json:"event_id,omitempty"`
	SellerID uint                `json:"seller_id"`
	Price    float32             `json:"price"`
	Status   types.ListingStatus `gorm:"default:'open'" json:"status,omitempty"`

	types.Timestamps
}
