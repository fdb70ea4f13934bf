//go:build linux

package quota

import (
	"fmt"
	"os/exec"
	"strings"
)

// readSecret fetches the credential document from the desktop secret
// store via libsecret (gnome-keyring / kwallet). Requires
// secret-tool from libsecret-tools.
func readSecret(service string) (string, error) {
	out, err := exec.Command("secret-tool", "lookup", "service", service).Output()
	if err != nil {
		return "", fmt.Errorf("quota: secret-tool lookup failed: %w", err)
	}
	raw := strings.TrimSpace(string(out))
	if raw == "" {
		return "", fmt.Errorf("quota: empty credential from secret-tool")
	}
	return raw, nil
}

func writeSecret(service, value string) error {
	cmd := exec.Command("secret-tool", "store",
		"--label", service, "service", service)
	cmd.Stdin = strings.NewReader(value)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("quota: secret-tool store failed: %w", err)
	}
	return nil
}
