package config

import (
	"errors"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "add-to-calendar"
	keyringUser    = "model-api-key"
)

// Credential returns the user-supplied model API key, or "" when none is
// configured. The GEMINI_API_KEY environment variable wins over the OS
// keyring so headless setups work without a secret service.
func Credential() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}

	key, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return ""
	}
	return key
}

// SetCredential stores the model API key in the OS keyring.
func SetCredential(key string) error {
	if key == "" {
		return errors.New("API key cannot be empty")
	}
	return keyring.Set(keyringService, keyringUser, key)
}

// ClearCredential removes the stored model API key. Missing entries are
// not an error.
func ClearCredential() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
