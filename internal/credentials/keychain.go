package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	// DefaultKeychainService is the generic-password service name used on macOS.
	DefaultKeychainService = "bearer-proxy-credentials"
	keychainAccount        = "bearer-proxy"

	// security(1) exits with 44 when the item does not exist.
	keychainItemNotFound = 44
)

// KeychainStore keeps credentials in the macOS login keychain via the
// security(1) command.
type KeychainStore struct {
	service string
	command string
}

// NewKeychainStore creates a keychain-backed store for the given service name.
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{service: service, command: "security"}
}

func (k *KeychainStore) Read(ctx context.Context) (*Record, error) {
	output, err := exec.CommandContext(ctx, k.command, "find-generic-password", "-s", k.service, "-w").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainItemNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to retrieve password from Keychain: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(output))), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from keychain: %w", err)
	}
	if rec.AccessToken == "" {
		return nil, nil
	}
	return &rec, nil
}

func (k *KeychainStore) Write(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// -U updates the item in place when it already exists.
	cmd := exec.CommandContext(ctx, k.command, "add-generic-password", "-U", "-s", k.service, "-a", keychainAccount, "-w", string(data))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to update keychain: %w", err)
	}
	return nil
}

func (k *KeychainStore) Clear(ctx context.Context) error {
	err := exec.CommandContext(ctx, k.command, "delete-generic-password", "-s", k.service).Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainItemNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete keychain item: %w", err)
	}
	return nil
}
