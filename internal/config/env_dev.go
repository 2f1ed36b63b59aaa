//go:build dev

package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// Dev builds let the workspace .env win over the shell.
func loadDotEnv() error {
	if err := godotenv.Overload(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
