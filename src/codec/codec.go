package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// TicketQRData is the signed payload carried by a ticket's QR code. QRHash
// binds every other field to the issuer's signing secret; any mismatch means
// forgery or corruption.
type TicketQRData struct {
	TicketID      string    `json:"ticketId"`
	EventID       uint      `json:"eventId"`
	OriginalPrice float32   `json:"originalPrice"`
	IssueDate     time.Time `json:"issueDate"`
	HolderEmail   string    `json:"holderEmail,omitempty"`
	QRHash        string    `json:"qrHash"`
}

var (
	ErrMalformedPayload = errors.New("malformed qr payload")
)

// ComputeHash derives the qr_hash for a payload from its canonical field
// encoding. The issue date participates at second precision so a payload
// survives a JSON round trip unchanged.
func ComputeHash(data *TicketQRData, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s|%d|%.2f|%d|%s", data.TicketID, data.EventID, data.OriginalPrice, data.IssueDate.UTC().Unix(), data.HolderEmail)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHash recomputes the expected hash and compares it against QRHash in
// constant time.
func VerifyHash(data *TicketQRData, secret []byte) bool {
	expected := ComputeHash(data, secret)
	return hmac.Equal([]byte(expected), []byte(data.QRHash))
}

// Encode signs the payload, wraps it in an AES-GCM envelope and returns the
// hex string that gets rendered into the QR image.
func Encode(data *TicketQRData, secret []byte, key []byte) (string, error) {
	data.QRHash = ComputeHash(data, secret)
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	cipherText := gcm.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(cipherText), nil
}

// Decode opens the envelope and parses the payload. It does NOT validate the
// hash; callers decide how much to trust the fields via VerifyHash. Any
// malformed input maps to ErrMalformedPayload so the engine can report
// INVALID_QR without leaking cipher internals.
func Decode(raw string, key []byte) (*TicketQRData, error) {
	cipherText, err := hex.DecodeString(raw)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(cipherText) < gcm.NonceSize() {
		return nil, ErrMalformedPayload
	}

	plaintext, err := gcm.Open(nil, cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	var data TicketQRData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, ErrMalformedPayload
	}
	if data.TicketID == "" || data.EventID == 0 {
		return nil, ErrMalformedPayload
	}
	return &data, nil
}
