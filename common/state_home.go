package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// GetStateHome returns a directory path for storing user-specific quoteflow
// state (logs, traces). The directory is created if needed. Can be overridden
// by setting the QF_STATE_HOME environment variable.
func GetStateHome() (string, error) {
	stateDir := os.Getenv("QF_STATE_HOME")
	if stateDir == "" {
		stateDir = filepath.Join(xdg.StateHome, "quoteflow")
	}

	err := os.MkdirAll(stateDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create quoteflow state directory: %w", err)
	}
	return stateDir, nil
}
