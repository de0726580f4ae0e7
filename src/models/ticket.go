package models

import (
	"log"
	"strm/src/lib"
	"strm/src/types"
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the ledger row for one physical ticket. It is created when
// the ticket is first seen (issuance or first listing attempt) and only ever
// mutated by the transfer manager.
type TicketStatus struct {
	TicketID string `gorm:"primarykey" json:"ticket_id"`
	EventID  uint   `json:"event_id"`

	IsUsed   bool `gorm:"default:false" json:"is_used"`
	IsListed bool `gorm:"default:false" json:"is_listed"`
	IsSold   bool `gorm:"default:false" json:"is_sold"`

	ListedBy *uint `json:"listed_by,omitempty"`
	SoldTo   *uint `json:"sold_to,omitempty"`

	UsedAt     *time.Time `json:"used_at,omitempty"`
	ListedAt   *time.Time `json:"listed_at,omitempty"`
	SoldAt     *time.Time `json:"sold_at,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	Event Event `json:"event,omitempty"`

	types.Timestamps
}

// TicketOwnershipTransfer is an append-only audit record, one per completed
// sale. The chain for a ticket_id reconstructs its full ownership history in
// chronological order. Rows are never updated or deleted.
type TicketOwnershipTransfer struct {
	ID           uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	TicketID     string    `gorm:"index" json:"ticket_id"`
	FromUserID   uint      `json:"from_user_id"`
	ToUserID     uint      `json:"to_user_id"`
	ListingID    uint      `json:"listing_id"`
	TransferDate time.Time `json:"transfer_date"`

	types.Timestamps
}

func TransferRecordedProducer(transfer *TicketOwnershipTransfer) error {
	payload := map[string]any{
		"id":            transfer.ID.String(),
		"ticket_id":     transfer.TicketID,
		"from_user_id":  transfer.FromUserID,
		"to_user_id":    transfer.ToUserID,
		"listing_id":    transfer.ListingID,
		"transfer_date": transfer.TransferDate.UTC().Format(time.RFC3339),
	}
	err := lib.KafkaProduceMessage("ticket_transfers_producer", "tickets-transferred", payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}
