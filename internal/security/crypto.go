// Package security provides at-rest protection for the authentication
// session blob. The key is derived from machine identity so a copied file
// is useless on another host.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

// SessionEncryptor encrypts and decrypts the persisted session blob.
type SessionEncryptor struct {
	derivedKey []byte
}

// NewSessionEncryptor derives a machine-bound key from the machine ID, the
// user home path and a per-install random salt stored next to the data.
func NewSessionEncryptor(dataDir string) (*SessionEncryptor, error) {
	salt, err := generateOrLoadSalt(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare salt: %w", err)
	}

	machineID, err := machineID()
	if err != nil {
		return nil, fmt.Errorf("failed to get machine ID: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	keyMaterial := fmt.Sprintf("%s:%s", machineID, home)
	derivedKey := pbkdf2.Key([]byte(keyMaterial), salt, 100000, 32, sha256.New)

	return &SessionEncryptor{derivedKey: derivedKey}, nil
}

// Encrypt seals plaintext with AES-GCM and returns base64 ciphertext.
func (se *SessionEncryptor) Encrypt(plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", fmt.Errorf("plaintext cannot be empty")
	}

	block, err := aes.NewCipher(se.derivedKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt opens base64 ciphertext produced by Encrypt.
func (se *SessionEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	if ciphertext == "" {
		return nil, fmt.Errorf("ciphertext cannot be empty")
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}

	block, err := aes.NewCipher(se.derivedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

func generateOrLoadSalt(dataDir string) ([]byte, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	saltPath := filepath.Join(dataDir, ".salt")
	if salt, err := os.ReadFile(saltPath); err == nil && len(salt) == 32 {
		return salt, nil
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate random salt: %w", err)
	}

	if err := os.WriteFile(saltPath, salt, 0600); err != nil {
		return nil, fmt.Errorf("failed to save salt: %w", err)
	}

	return salt, nil
}

func machineID() (string, error) {
	if data, err := os.ReadFile("/etc/machine-id"); err == nil {
		return string(data[:min(len(data), 32)]), nil
	}
	if data, err := os.ReadFile("/var/lib/dbus/machine-id"); err == nil {
		return string(data[:min(len(data), 32)]), nil
	}

	// Fallback: hostname plus user ID
	hostname, _ := os.Hostname()
	fallback := fmt.Sprintf("%s-%d", hostname, os.Getuid())
	if len(fallback) < 8 {
		return "fallback-machine-id", nil
	}
	return fallback, nil
}
