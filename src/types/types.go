package types

import (
	"strm/src/codec"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

// TicketVerificationError is a stable, machine-checkable verdict code. The set
// is closed; downstream clients and tests branch on the raw string values.
type TicketVerificationError string

const (
	TICKET_NOT_FOUND TicketVerificationError = "TICKET_NOT_FOUND"
	WRONG_EVENT      TicketVerificationError = "WRONG_EVENT"
	ALREADY_USED     TicketVerificationError = "ALREADY_USED"
	ALREADY_LISTED   TicketVerificationError = "ALREADY_LISTED"
	ALREADY_SOLD     TicketVerificationError = "ALREADY_SOLD"
	INVALID_QR       TicketVerificationError = "INVALID_QR"
	FAKE_TICKET      TicketVerificationError = "FAKE_TICKET"
	EXPIRED          TicketVerificationError = "EXPIRED"
)

// Error makes verdict codes usable as first-class errors on the commit path,
// so handlers can tell a business rejection from an infrastructure fault.
func (e TicketVerificationError) Error() string {
	return string(e)
}

type VerificationAction string

const (
	ACTION_LIST     VerificationAction = "list"
	ACTION_PURCHASE VerificationAction = "purchase"
	ACTION_GATE     VerificationAction = "gate"
)

type ListingStatus string

const (
	LISTING_OPEN      ListingStatus = "open"
	LISTING_SOLD      ListingStatus = "sold"
	LISTING_WITHDRAWN ListingStatus = "withdrawn"
	LISTING_EXPIRED   ListingStatus = "expired"
)

type ScanResult string

const (
	SCAN_ADMITTED  ScanResult = "admitted"
	SCAN_DUPLICATE ScanResult = "duplicate"
)

type VerifyTicketRequestBody struct {
	Code    string   `json:"code" binding:"required"`
	EventID uint     `json:"event_id" binding:"required"`
	Action  string   `json:"action" binding:"required,verifyaction"`
	Price   *float32 `json:"price,omitempty" binding:"omitempty,gte=0"`
}

type CreateListingRequestBody struct {
	Code    string  `json:"code" binding:"required"`
	EventID uint    `json:"event_id" binding:"required"`
	Price   float32 `json:"price" binding:"required,gt=0"`
}

type CreatePurchaseRequestBody struct {
	Code      string `json:"code" binding:"required"`
	EventID   uint   `json:"event_id" binding:"required"`
	ListingID uint   `json:"listing_id" binding:"required"`
}

type AdmissionRequestBody struct {
	Code    string `json:"code" binding:"required"`
	EventID uint   `json:"event_id" binding:"required"`
}

type IssueTicketRequestBody struct {
	EventID       uint    `json:"event_id" binding:"required"`
	OriginalPrice float32 `json:"original_price" binding:"required,gt=0"`
	HolderEmail   string  `json:"holder_email,omitempty" binding:"omitempty,email"`
}

type TicketURIParams struct {
	TicketID string `uri:"id" binding:"required"`
}

// TicketVerificationResult is the engine's verdict. Always freshly computed,
// never persisted. Errors is empty iff IsValid; warnings never block.
type TicketVerificationResult struct {
	IsValid    bool                      `json:"is_valid"`
	TicketID   string                    `json:"ticket_id,omitempty"`
	EventID    uint                      `json:"event_id,omitempty"`
	Errors     []TicketVerificationError `json:"errors"`
	Warnings   []string                  `json:"warnings,omitempty"`
	TicketData *codec.TicketQRData       `json:"ticket_data,omitempty"`
}

func (r *TicketVerificationResult) HasError(code TicketVerificationError) bool {
	for _, e := range r.Errors {
		if e == code {
			return true
		}
	}
	return false
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
