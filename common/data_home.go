package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// GetDataHome returns a directory path for storing quoteflow data (the sqlite
// database, jetstream files). Can be overridden by setting QF_DATA_HOME.
func GetDataHome() (string, error) {
	dataDir := os.Getenv("QF_DATA_HOME")
	if dataDir != "" {
		return dataDir, nil
	}

	dataDir = filepath.Join(xdg.DataHome, "quoteflow")
	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create quoteflow data directory: %w", err)
	}
	return dataDir, nil
}
