package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strm/src/codec"
	"strm/src/config"
	"strm/src/models"
	"strm/src/types"
	"time"

	"gorm.io/gorm"
)

// Tickets issued much earlier than this before their event's start are
// flagged as possibly stale or rolled over from a previous run of the event.
const staleIssueWindow = 365 * 24 * time.Hour

// Engine decides whether a scanned ticket may be listed, purchased or
// admitted. It only reads the ledger; committing state flips is the transfer
// manager's job. Verification is advisory, commit is authoritative.
type Engine struct {
	Ledger        TicketLedger
	SigningSecret []byte
	EncryptionKey []byte
	PriceCapMult  float32
	Now           func() time.Time
}

func NewEngine(database *gorm.DB) (*Engine, error) {
	key, err := config.GetQREncryptionKey()
	if err != nil {
		log.Printf("Could not read QR encryption key: %s\n", err.Error())
		return nil, err
	}
	return &Engine{
		Ledger:        NewLedger(database),
		SigningSecret: config.GetQRSigningSecret(),
		EncryptionKey: key,
		PriceCapMult:  config.GetResalePriceCapMult(),
	}, nil
}

type VerifyRequest struct {
	RawPayload      string
	ExpectedEventID uint
	ActorID         uint
	Action          types.VerificationAction
	AskingPrice     float32
}

// Verify runs the full rule set for one scanned payload. Business rejections
// land in the result's error codes; a non-nil error means the store itself
// failed and the outcome is unknown.
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (*types.TicketVerificationResult, error) {
	result := &types.TicketVerificationResult{
		Errors:   []types.TicketVerificationError{},
		Warnings: []string{},
	}

	data, err := codec.Decode(req.RawPayload, e.EncryptionKey)
	if err != nil {
		if !errors.Is(err, codec.ErrMalformedPayload) {
			// cipher setup failed; a misconfigured key is our fault, not the
			// ticket's
			return nil, err
		}
		result.Errors = append(result.Errors, types.INVALID_QR)
		return result, nil
	}
	result.TicketID = data.TicketID
	result.EventID = data.EventID
	result.TicketData = data

	if !codec.VerifyHash(data, e.SigningSecret) {
		result.Errors = append(result.Errors, types.FAKE_TICKET)
		return result, nil
	}

	if req.ExpectedEventID != 0 && req.ExpectedEventID != data.EventID {
		result.Errors = append(result.Errors, types.WRONG_EVENT)
	}

	var status *statusRow
	if req.Action == types.ACTION_LIST {
		row, err := e.Ledger.EnsureStatus(ctx, data.TicketID, data.EventID)
		if err != nil {
			return nil, err
		}
		status = &statusRow{row}
	} else {
		row, err := e.Ledger.GetStatus(ctx, data.TicketID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.Errors = append(result.Errors, types.TICKET_NOT_FOUND)
				return result, nil
			}
			return nil, err
		}
		status = &statusRow{row}
	}

	now := time.Now().UTC()
	if e.Now != nil {
		now = e.Now()
	}

	event, err := e.Ledger.GetEvent(ctx, status.EventID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if event != nil && !event.EndsAt.IsZero() && now.After(event.EndsAt) {
		result.Errors = append(result.Errors, types.EXPIRED)
	}

	if status.IsUsed {
		result.Errors = append(result.Errors, types.ALREADY_USED)
	}

	switch req.Action {
	case types.ACTION_LIST:
		if status.IsListed {
			result.Errors = append(result.Errors, types.ALREADY_LISTED)
		}
		if status.IsSold && !status.soldTo(req.ActorID) {
			// the recorded buyer may re-list; anyone else needs a completed
			// ownership transfer first
			result.Errors = append(result.Errors, types.ALREADY_SOLD)
		}
	case types.ACTION_PURCHASE:
		if !status.IsListed {
			if status.IsSold {
				result.Errors = append(result.Errors, types.ALREADY_SOLD)
			} else {
				result.Errors = append(result.Errors, types.TICKET_NOT_FOUND)
			}
		}
	}

	if req.Action == types.ACTION_LIST && req.AskingPrice > 0 {
		priceCap := data.OriginalPrice * e.PriceCapMult
		if req.AskingPrice > priceCap {
			result.Warnings = append(result.Warnings, fmt.Sprintf("asking price %.2f exceeds the face value cap of %.2f", req.AskingPrice, priceCap))
		}
	}
	if event != nil && !event.StartsAt.IsZero() && event.StartsAt.Sub(data.IssueDate) > staleIssueWindow {
		result.Warnings = append(result.Warnings, "ticket was issued unusually long before the event; possibly a rolled-over QR")
	}

	result.IsValid = len(result.Errors) == 0

	if err := e.Ledger.TouchVerified(ctx, data.TicketID); err != nil {
		log.Printf("Could not update verified_at for ticket [%s]: %s\n", data.TicketID, err.Error())
	}

	return result, nil
}

type statusRow struct {
	*models.TicketStatus
}

func (s *statusRow) soldTo(userID uint) bool {
	return s.SoldTo != nil && userID != 0 && *s.SoldTo == userID
}
