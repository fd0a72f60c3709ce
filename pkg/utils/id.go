package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GenerateID generates a random ID with prefix
func GenerateID(prefix string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// GenerateConnectionID generates a unique connection ID
func GenerateConnectionID() string {
	return GenerateID("conn")
}

// GenerateStreamID generates a unique stream ID
func GenerateStreamID() string {
	return GenerateID("stream")
}

// GenerateMessageID generates a chat message ID. Server-assigned so the
// transcript key does not depend on client clocks.
func GenerateMessageID() string {
	return uuid.NewString()
}
