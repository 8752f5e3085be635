package utils

import (
	"crypto/md5"
	"fmt"
)

// HashBytes returns the hex md5 of a payload, used as a cache key for
// prediction requests.
func HashBytes(input []byte) string {
	return fmt.Sprintf("%x", md5.Sum(input))
}
