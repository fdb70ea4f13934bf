//go:build darwin

package quota

import (
	"fmt"
	"os/exec"
	"strings"
)

// readSecret fetches the credential document from the macOS Keychain.
func readSecret(service string) (string, error) {
	out, err := exec.Command("security", "find-generic-password",
		"-s", service, "-w").Output()
	if err != nil {
		return "", fmt.Errorf("quota: keychain lookup failed: %w", err)
	}
	raw := strings.TrimSpace(string(out))
	if raw == "" {
		return "", fmt.Errorf("quota: empty credential in keychain")
	}
	return raw, nil
}

// writeSecret replaces the keychain item with delete-then-add
// semantics. The delete is allowed to fail when no item exists yet.
func writeSecret(service, value string) error {
	_ = exec.Command("security", "delete-generic-password", "-s", service).Run()

	if err := exec.Command("security", "add-generic-password",
		"-s", service, "-w", value).Run(); err != nil {
		return fmt.Errorf("quota: keychain write failed: %w", err)
	}
	return nil
}
