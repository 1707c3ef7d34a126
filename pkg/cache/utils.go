package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// HashKey returns the hex MD5 of b.
func HashKey(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
