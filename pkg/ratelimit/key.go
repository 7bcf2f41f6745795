package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// maxKeyLength keeps keys short for Redis.
const maxKeyLength = 64

// Key builds the counter key of one user and notification type. Long
// types are hashed to 32 hex chars.
func Key(userID int64, notifType string) string {
	key := strconv.FormatInt(userID, 10) + ":" + notifType
	if len(key) <= maxKeyLength {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return strconv.FormatInt(userID, 10) + ":" + hex.EncodeToString(sum[:16])
}

func violationsKey(userID int64) string {
	return strconv.FormatInt(userID, 10) + ":violations"
}

func blockKey(userID int64) string {
	return strconv.FormatInt(userID, 10) + ":block"
}
