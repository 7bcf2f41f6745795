package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Signature headers sent with every gateway request.
const (
	HeaderSignature = "X-Notify-Signature"
	HeaderTimestamp = "X-Notify-Timestamp"
	HeaderRequestID = "X-Notify-Request-Id"
)

// Sign computes HMAC-SHA256(secret, timestamp + "." + payload) and writes the
// signature headers to h.
func Sign(h http.Header, secret string, payload []byte, at time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	ts := at.Unix()
	h.Set(HeaderSignature, signature(secret, ts, payload))
	h.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderRequestID, uuid.NewString())
	return nil
}

// Verify checks the signature headers of a gateway request. maxAge bounds
// the accepted timestamp skew when positive.
func Verify(h http.Header, secret string, payload []byte, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	ts, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp: %w", err)
	}
	if maxAge > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > maxAge || age < -time.Minute {
			return fmt.Errorf("signature timestamp outside accepted window: %s", age)
		}
	}
	want := signature(secret, ts, payload)
	if !hmac.Equal([]byte(want), []byte(h.Get(HeaderSignature))) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func signature(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
