package pixgo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSignatureMissing = errors.New("webhook signature missing")
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrTimestampInvalid = errors.New("webhook timestamp invalid")
	ErrTimestampExpired = errors.New("webhook timestamp outside tolerance")
)

const signaturePrefix = "sha256="

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<body>"
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook delivery. A zero tolerance disables the
// timestamp window but the timestamp is still part of the signed content.
func VerifySignature(secret, timestamp string, body []byte, signature string, tolerance time.Duration, now time.Time) error {
	signature = strings.TrimSpace(signature)
	timestamp = strings.TrimSpace(timestamp)
	if signature == "" || timestamp == "" {
		return ErrSignatureMissing
	}
	sentAt, err := ParseTimestamp(timestamp)
	if err != nil {
		return err
	}
	if tolerance > 0 {
		skew := now.Sub(sentAt)
		if skew < 0 {
			skew = -skew
		}
		if skew > tolerance {
			return ErrTimestampExpired
		}
	}

	got, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(signature), signaturePrefix))
	if err != nil {
		return ErrSignatureInvalid
	}
	want, _ := hex.DecodeString(Sign(secret, timestamp, body))
	if !hmac.Equal(got, want) {
		return ErrSignatureInvalid
	}
	return nil
}

// ParseTimestamp accepts unix seconds, unix milliseconds or RFC3339
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrTimestampInvalid
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n), nil
		}
		return time.Unix(n, 0), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, ErrTimestampInvalid
}
