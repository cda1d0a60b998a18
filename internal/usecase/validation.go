package usecase

import (
	"fmt"
	"strings"
)

// requireField rejects blank input. Syntax rules are enforced at the transport layer.
func requireField(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, name)
	}
	return trimmed, nil
}
