package entry

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const addressHexLen = 64

// NormalizeAddress returns the long form of an Aptos account address:
// lower-case, 0x-prefixed, left-padded to 32 bytes.
func NormalizeAddress(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "0x")
	if value == "" {
		return "", fmt.Errorf("address is empty")
	}
	if len(value) > addressHexLen {
		return "", fmt.Errorf("address %q is longer than 32 bytes", raw)
	}
	if len(value)%2 == 1 {
		value = "0" + value
	}
	if _, err := hex.DecodeString(value); err != nil {
		return "", fmt.Errorf("address %q is not hex", raw)
	}
	return "0x" + strings.Repeat("0", addressHexLen-len(value)) + value, nil
}

func MustNormalizeAddress(raw string) string {
	address, err := NormalizeAddress(raw)
	if err != nil {
		panic(fmt.Errorf("normalize address: %w", err))
	}
	return address
}
