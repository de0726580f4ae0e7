package common

import (
	"context"
	"strm/src/models"
	"time"

	"gorm.io/gorm"
)

// TicketLedger is the read surface of the ticket status store. All mutation
// goes through the TransferManager; the ledger itself exposes no setters
// beyond the create-on-first-sight path and the advisory verified_at touch.
type TicketLedger interface {
	GetStatus(ctx context.Context, ticketID string) (*models.TicketStatus, error)
	EnsureStatus(ctx context.Context, ticketID string, eventID uint) (*models.TicketStatus, error)
	GetEvent(ctx context.Context, eventID uint) (*models.Event, error)
	TouchVerified(ctx context.Context, ticketID string) error
}

type GormLedger struct {
	db *gorm.DB
}

func NewLedger(database *gorm.DB) *GormLedger {
	return &GormLedger{db: database}
}

func (l *GormLedger) GetStatus(ctx context.Context, ticketID string) (*models.TicketStatus, error) {
	var status models.TicketStatus
	if err := l.db.WithContext(ctx).
		Where(&models.TicketStatus{TicketID: ticketID}).
		First(&status).
		Error; err != nil {
		return nil, err
	}
	return &status, nil
}

// EnsureStatus returns the existing row or creates a fresh one. Idempotent;
// a second call for the same ticket never duplicates or resets state.
func (l *GormLedger) EnsureStatus(ctx context.Context, ticketID string, eventID uint) (*models.TicketStatus, error) {
	status := models.TicketStatus{TicketID: ticketID, EventID: eventID}
	if err := l.db.WithContext(ctx).
		Where(&models.TicketStatus{TicketID: ticketID}).
		FirstOrCreate(&status).
		Error; err != nil {
		return nil, err
	}
	return &status, nil
}

func (l *GormLedger) GetEvent(ctx context.Context, eventID uint) (*models.Event, error) {
	var event models.Event
	if err := l.db.WithContext(ctx).
		Where(&models.Event{ID: eventID}).
		First(&event).
		Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (l *GormLedger) TouchVerified(ctx context.Context, ticketID string) error {
	return l.db.WithContext(ctx).
		Model(&models.TicketStatus{}).
		Where("ticket_id = ?", ticketID).
		Update("verified_at", time.Now().UTC()).
		Error
}
