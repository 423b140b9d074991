package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost   = 12
	APIKeyLength = 16
)

// HashAPIKey produces the bcrypt hash stored in configuration. Raw keys are
// never persisted.
func HashAPIKey(key string) (string, error) {
	if len(key) < APIKeyLength {
		return "", fmt.Errorf("api key must be at least %d characters long", APIKeyLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckAPIKey(hashedKey string, key string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key))
	return err == nil
}
