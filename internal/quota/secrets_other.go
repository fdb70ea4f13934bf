//go:build !darwin && !linux

package quota

import "fmt"

func readSecret(service string) (string, error) {
	return "", fmt.Errorf("quota: no secret store on this platform")
}

func writeSecret(service, value string) error {
	return fmt.Errorf("quota: no secret store on this platform")
}
