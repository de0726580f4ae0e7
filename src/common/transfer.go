package common

import (
	"context"
	"errors"
	"log"
	"os"
	"strm/src/models"
	"strm/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransferManager owns every mutation of the ticket ledger. Each commit
// re-checks its preconditions inside the transaction that performs the flip,
// so a verification read that went stale between verify and commit loses
// cleanly instead of corrupting state. The guarded UPDATEs serialize
// concurrent committers per ticket: losers see zero rows affected and fail
// fast with the state-derived code.
type TransferManager struct {
	db *gorm.DB
}

func NewTransferManager(database *gorm.DB) *TransferManager {
	return &TransferManager{db: database}
}

// CommitList flips a ticket into the listed state. The listing row itself is
// created by the caller; its id only travels here for provenance symmetry
// with CommitSale. The recorded buyer of a sold ticket may re-list it, which
// resets the sold flags; anyone else is rejected with ALREADY_SOLD.
func (m *TransferManager) CommitList(ctx context.Context, ticketID string, listingID uint, listedBy uint) (*models.TicketStatus, error) {
	var status models.TicketStatus
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where(&models.TicketStatus{TicketID: ticketID}).
			First(&status).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.TICKET_NOT_FOUND
			}
			return err
		}
		relist := status.IsSold && status.SoldTo != nil && *status.SoldTo == listedBy
		if err := listConflict(&status, relist); err != nil {
			return err
		}

		now := time.Now().UTC()
		values := map[string]any{
			"is_listed": true,
			"listed_by": listedBy,
			"listed_at": now,
		}
		cond := tx.Model(&models.TicketStatus{}).
			Where("ticket_id = ? AND is_used = false AND is_listed = false", ticketID)
		if relist {
			values["is_sold"] = false
			values["sold_to"] = nil
			cond = cond.Where("sold_to = ?", listedBy)
		} else {
			cond = cond.Where("is_sold = false")
		}
		res := cond.Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost a race between the read above and the flip
			if err := tx.Where(&models.TicketStatus{TicketID: ticketID}).First(&status).Error; err != nil {
				return err
			}
			if err := listConflict(&status, false); err != nil {
				return err
			}
			return types.ALREADY_LISTED
		}

		status.IsListed = true
		status.ListedBy = &listedBy
		status.ListedAt = &now
		if relist {
			status.IsSold = false
			status.SoldTo = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// CommitSale atomically converts an active listing into a completed sale and
// appends the ownership transfer record. Not idempotent; callers must
// re-query state after a timeout instead of blindly retrying.
func (m *TransferManager) CommitSale(ctx context.Context, ticketID string, toUserID uint, listingID uint) (*models.TicketStatus, *models.TicketOwnershipTransfer, error) {
	var status models.TicketStatus
	var transfer *models.TicketOwnershipTransfer
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where(&models.TicketStatus{TicketID: ticketID}).
			First(&status).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.TICKET_NOT_FOUND
			}
			return err
		}
		if status.IsUsed {
			return types.ALREADY_USED
		}
		if status.IsSold {
			return types.ALREADY_SOLD
		}
		if !status.IsListed {
			return types.TICKET_NOT_FOUND
		}

		var listing models.Listing
		if err := tx.
			Where(&models.Listing{ID: listingID, TicketID: ticketID}).
			First(&listing).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.TICKET_NOT_FOUND
			}
			return err
		}
		if listing.Status == types.LISTING_SOLD {
			return types.ALREADY_SOLD
		}
		if listing.Status != types.LISTING_OPEN {
			return types.TICKET_NOT_FOUND
		}

		var fromUserID uint
		if status.ListedBy != nil {
			fromUserID = *status.ListedBy
		}

		now := time.Now().UTC()
		res := tx.Model(&models.TicketStatus{}).
			Where("ticket_id = ? AND is_listed = true AND is_sold = false AND is_used = false", ticketID).
			Updates(map[string]any{
				"is_listed": false,
				"listed_by": nil,
				"is_sold":   true,
				"sold_to":   toUserID,
				"sold_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ALREADY_SOLD
		}

		if err := tx.Model(&models.Listing{}).
			Where("id = ? AND status = ?", listingID, types.LISTING_OPEN).
			Update("status", types.LISTING_SOLD).
			Error; err != nil {
			return err
		}

		transfer = &models.TicketOwnershipTransfer{
			ID:           uuid.New(),
			TicketID:     ticketID,
			FromUserID:   fromUserID,
			ToUserID:     toUserID,
			ListingID:    listingID,
			TransferDate: now,
		}
		if err := tx.Create(transfer).Error; err != nil {
			return err
		}

		status.IsListed = false
		status.ListedBy = nil
		status.IsSold = true
		status.SoldTo = &toUserID
		status.SoldAt = &now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if os.Getenv("KAFKA_BROKER") != "" {
		if err := models.TransferRecordedProducer(transfer); err != nil {
			log.Printf("Error publishing transfer record [%s]: %s\n", transfer.ID.String(), err.Error())
		}
	}
	return &status, transfer, nil
}

// CommitUse marks a ticket as consumed at the gate. Idempotent: the second
// and later calls report alreadyUsed instead of failing, so a double scan
// shows "already admitted at T" rather than an error.
func (m *TransferManager) CommitUse(ctx context.Context, ticketID string, scannedBy uint) (*models.TicketStatus, bool, error) {
	var status models.TicketStatus
	alreadyUsed := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where(&models.TicketStatus{TicketID: ticketID}).
			First(&status).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.TICKET_NOT_FOUND
			}
			return err
		}
		if status.IsUsed {
			alreadyUsed = true
			return nil
		}

		now := time.Now().UTC()
		res := tx.Model(&models.TicketStatus{}).
			Where("ticket_id = ? AND is_used = false", ticketID).
			Updates(map[string]any{"is_used": true, "used_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// a concurrent scan got there first
			if err := tx.Where(&models.TicketStatus{TicketID: ticketID}).First(&status).Error; err != nil {
				return err
			}
			alreadyUsed = true
			return nil
		}

		status.IsUsed = true
		status.UsedAt = &now
		scan := models.GateScan{
			ID:        uuid.New(),
			TicketID:  ticketID,
			ScannedBy: scannedBy,
			Result:    string(types.SCAN_ADMITTED),
			ScannedAt: now,
		}
		return tx.Create(&scan).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &status, alreadyUsed, nil
}

func listConflict(status *models.TicketStatus, relist bool) error {
	if status.IsUsed {
		return types.ALREADY_USED
	}
	if status.IsListed {
		return types.ALREADY_LISTED
	}
	if status.IsSold && !relist {
		return types.ALREADY_SOLD
	}
	return nil
}
