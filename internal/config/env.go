package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads a .env-style file into the process environment via
// godotenv. Missing files are not an error — the same "best effort" contract
// the rest of the service uses for optional local overrides.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
