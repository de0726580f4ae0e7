package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

// GetQREncryptionKey returns the AES key that seals QR payloads in transit.
// The env value is hex-encoded, same format the issuer tooling writes.
func GetQREncryptionKey() ([]byte, error) {
	keyEnv := os.Getenv("API_QRC_SECRET")
	key, err := hex.DecodeString(keyEnv)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GetQRSigningSecret returns the issuer secret binding qr_hash to the payload
// fields. Distinct from the transport encryption key.
func GetQRSigningSecret() []byte {
	return []byte(os.Getenv("QR_SIGNING_SECRET"))
}

// GetResalePriceCapMult returns the multiple of face value above which a
// listing price raises a warning. Defaults to 1.0 (resale capped at face value).
func GetResalePriceCapMult() float32 {
	capEnv := os.Getenv("RESALE_PRICE_CAP_MULT")
	if capEnv == "" {
		return 1.0
	}
	mult, err := strconv.ParseFloat(capEnv, 32)
	if err != nil || mult <= 0 {
		return 1.0
	}
	return float32(mult)
}
