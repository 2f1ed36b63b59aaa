package application

import (
	"encoding/hex"
	"strings"

	"chainnotes/internal/domain"

	"github.com/google/uuid"
)

// ValidateUserID checks the caller identity handed over by the authentication layer.
// Only the format is checked; the account itself is not looked up.
func ValidateUserID(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if _, err := uuid.Parse(userID); err == nil {
		return nil
	}
	if isObjectID(userID) {
		return nil
	}
	return domain.ErrUnknownUser
}

// isObjectID accepts the 12-byte hex identifiers issued by the legacy user service.
func isObjectID(value string) bool {
	if len(value) != 24 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}
