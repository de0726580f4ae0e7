package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strm/src/codec"
	"strm/src/common"
	"strm/src/config"
	"strm/src/db"
	"strm/src/lib"
	"strm/src/models"
	"strm/src/types"
	"time"

	"github.com/google/uuid"
)

// codeCacheKey is where the encoded payload for a ticket lives in Redis so
// the QR image can be re-rendered without re-signing.
func codeCacheKey(ticketID string) string {
	return fmt.Sprintf("ticketcode_%s", ticketID)
}

// IssueTicket mints a fresh ledger row and its signed QR payload. Issuance
// is the only place the face value enters the system; afterwards it travels
// exclusively inside the signed payload.
func IssueTicket(ctx context.Context, params *types.IssueTicketRequestBody) (string, string, error) {
	database := db.GetDb()

	var event models.Event
	if err := database.Where(&models.Event{ID: params.EventID}).First(&event).Error; err != nil {
		err := errors.New("event not found")
		return "", "", err
	}

	ticketID := uuid.NewString()
	ledger := common.NewLedger(database)
	if _, err := ledger.EnsureStatus(ctx, ticketID, event.ID); err != nil {
		log.Printf("Error creating ledger row for ticket [%s]: %s\n", ticketID, err.Error())
		return "", "", err
	}

	key, err := config.GetQREncryptionKey()
	if err != nil {
		log.Printf("Could not read key from string: %s\n", err.Error())
		return "", "", err
	}
	data := &codec.TicketQRData{
		TicketID:      ticketID,
		EventID:       event.ID,
		OriginalPrice: params.OriginalPrice,
		IssueDate:     time.Now().UTC(),
		HolderEmail:   params.HolderEmail,
	}
	code, err := codec.Encode(data, config.GetQRSigningSecret(), key)
	if err != nil {
		log.Printf("Error encoding payload: %s\n", err.Error())
		return "", "", err
	}

	rd := lib.GetRedisClient()
	if rd != nil {
		if err := rd.Set(ctx, codeCacheKey(ticketID), code, 0).Err(); err != nil {
			log.Printf("Error caching code for ticket [%s]: %s\n", ticketID, err.Error())
		}
	}
	return ticketID, code, nil
}

// GetCachedCode returns the encoded payload for a previously issued ticket.
func GetCachedCode(ctx context.Context, ticketID string) (string, error) {
	rd := lib.GetRedisClient()
	if rd == nil {
		return "", errors.New("cache unavailable")
	}
	content, err := rd.Get(ctx, codeCacheKey(ticketID)).Result()
	if err != nil {
		return "", err
	}
	return content, nil
}

// GetTransferChain returns a ticket's ownership history in chronological
// order, oldest first.
func GetTransferChain(ticketID string) ([]models.TicketOwnershipTransfer, error) {
	database := db.GetDb()
	var transfers []models.TicketOwnershipTransfer
	if err := database.
		Where(&models.TicketOwnershipTransfer{TicketID: ticketID}).
		Order("transfer_date asc").
		Find(&transfers).
		Error; err != nil {
		return nil, err
	}
	return transfers, nil
}
