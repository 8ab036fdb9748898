package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "mailmerge"

// PasswordEnv overrides the keyring lookup for the SMTP password.
const PasswordEnv = "MAILMERGE_SMTP_PASSWORD"

// ErrNotFound is returned when no credential is stored under a key.
var ErrNotFound = errors.New("credential not found")

// openRing is replaced in tests with an in-memory keyring.
var openRing = openKeyring

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	fileDir := "~/.config/mailmerge/credentials"
	if home, err := os.UserHomeDir(); err == nil {
		fileDir = filepath.Join(home, ".config", "mailmerge", "credentials")
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailmerge-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openRing()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openRing()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "mailmerge " + key,
		Description: "SMTP account password",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openRing()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// SMTPKey is the keyring key for an account's password.
func SMTPKey(username string) string {
	return "smtp:" + username
}

// Password resolves the SMTP password for username, preferring the
// MAILMERGE_SMTP_PASSWORD environment variable over the keyring.
func Password(username string) (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}
	if username == "" {
		return "", fmt.Errorf("no account username configured: %w", ErrNotFound)
	}
	return Get(SMTPKey(username))
}

// SetPassword stores the SMTP password for username.
func SetPassword(username, password string) error {
	return Set(SMTPKey(username), password)
}
