package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/apperr"
)

// KeyPrefix leads every issued API key.
const KeyPrefix = "sk_"

var ErrInvalidExpiry = apperr.New(apperr.Validation, "invalid expiry format, use 1H, 1D, 1M or 1Y")

// GenerateAPIKey creates a new key and its hash. Only the hash is stored.
func GenerateAPIKey() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	key := KeyPrefix + hex.EncodeToString(buf)
	return key, HashKey(key), nil
}

// HashKey is the lookup hash of a raw key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ParseExpiry turns 1H, 1D, 1M or 1Y into an absolute time after now.
// An empty string means the key never expires.
func ParseExpiry(s string, now time.Time) (*time.Time, error) {
	var t time.Time
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "1H":
		t = now.Add(time.Hour)
	case "1D":
		t = now.AddDate(0, 0, 1)
	case "1M":
		t = now.AddDate(0, 1, 0)
	case "1Y":
		t = now.AddDate(1, 0, 0)
	default:
		return nil, ErrInvalidExpiry
	}
	return &t, nil
}
