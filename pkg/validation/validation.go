package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// SessionIDRegex validates session ID format
	SessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// PeerIDRegex validates peer ID format
	PeerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// UserIDRegex validates user ID format
	UserIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateSessionID validates a client-chosen session identifier.
func ValidateSessionID(sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if len(sessionID) > 100 {
		return fmt.Errorf("session id is too long (max 100 characters)")
	}
	if !SessionIDRegex.MatchString(sessionID) {
		return fmt.Errorf("session id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidatePeerID validates a client-generated peer identifier.
func ValidatePeerID(peerID string) error {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return fmt.Errorf("peer id is required")
	}
	if len(peerID) > 100 {
		return fmt.Errorf("peer id is too long (max 100 characters)")
	}
	if !PeerIDRegex.MatchString(peerID) {
		return fmt.Errorf("peer id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateUserID validates a user identifier.
func ValidateUserID(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if len(userID) > 100 {
		return fmt.Errorf("user id is too long (max 100 characters)")
	}
	if !UserIDRegex.MatchString(userID) {
		return fmt.Errorf("user id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateChatText validates chat message text against a length budget.
func ValidateChatText(text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message is required")
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("message is not valid UTF-8")
	}
	if utf8.RuneCountInString(text) > maxLen {
		return fmt.Errorf("message is too long (max %d characters)", maxLen)
	}
	return nil
}

// ValidateUsername validates a display name.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if utf8.RuneCountInString(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	return nil
}
