// Package dotenv handles credential discovery for the CLI: it merges a
// local .env file into the process environment and resolves the remote
// session's API key.
package dotenv

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// apiKeyVars are checked in order when resolving the credential.
var apiKeyVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// Load merges KEY=VALUE pairs from a dotenv-style file into the process
// environment. Existing environment variables are preserved; a missing
// file is not an error.
func Load(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// APIKey resolves the remote session credential from the environment.
// The second return is false when no credential is discoverable.
func APIKey() (string, bool) {
	for _, name := range apiKeyVars {
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}
