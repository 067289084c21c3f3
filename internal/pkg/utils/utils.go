package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateUUID generates a UUID v4 string.
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateOrderID generates a unique order ID. Gateways cap order ids at
// 45-50 characters, so this stays short.
func GenerateOrderID() string {
	return fmt.Sprintf("ORD%d%s", time.Now().UnixMilli(), strings.ToUpper(RandomHex(3)))
}

// GenerateCustomerID generates a customer identifier.
func GenerateCustomerID() string {
	return "CUST-" + uuid.New().String()
}

// GenerateGuestID identifies a shopper who checked out without an account.
func GenerateGuestID() string {
	return "GUEST-" + uuid.New().String()
}

// RandomHex generates a random hex string of n bytes.
func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Presence renders a credential as a presence flag for logs.
func Presence(secret string) string {
	if secret == "" {
		return "missing"
	}
	return "present"
}

// Fingerprint returns a short, non-reversible identifier of a secret:
// the first 8 hex characters of its SHA-256. Empty input yields "".
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])[:8]
}

// MaskEmail keeps the first character of the local part.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
