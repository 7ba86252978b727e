// Package scaffold writes a starter settings module for a new deployment.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/backend/internal/settings"
)

//go:embed templates/*
var templatesFS embed.FS

// Initialize writes the settings template to path, creating parent
// directories. An existing file is only replaced when force is true.
// The written file is loaded back to make sure it validates.
func Initialize(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	content, err := templatesFS.ReadFile("templates/settings.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read settings template: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if _, err := settings.Load(path); err != nil {
		return fmt.Errorf("generated settings are invalid: %w", err)
	}

	return nil
}
