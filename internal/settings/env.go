package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// SetDefault sets key to value only when key is absent from the environment.
// A variable that is set but empty counts as present.
// Returns the value in effect afterwards.
func SetDefault(key, value string) (string, error) {
	if existing, ok := os.LookupEnv(key); ok {
		return existing, nil
	}
	if err := os.Setenv(key, value); err != nil {
		return "", fmt.Errorf("set default for %s: %w", key, err)
	}
	return value, nil
}

// LoadDotEnv loads .env-style files into the process environment.
// Missing files are skipped and variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %q: %w", path, err)
		}
	}
	return nil
}
