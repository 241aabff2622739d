package license

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashMachineID one-way hashes a raw machine identifier. Raw identifiers are
// never stored or logged.
func HashMachineID(machineID string) string {
	sum := sha256.Sum256([]byte(machineID))
	return hex.EncodeToString(sum[:])
}
