package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateCode returns an uppercase hex string built from n random bytes.
// Used for cave ticket codes.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(byt)), nil
}
