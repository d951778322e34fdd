package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are loaded from the manifest directory. Variables already present
// in the process environment are never overridden.
var envFiles = []string{".env", ".env.local"}

func loadEnvFiles(dir string) error {
	for _, name := range envFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
		slog.Debug("Loaded environment file", slog.String("path", p))
	}
	return nil
}
