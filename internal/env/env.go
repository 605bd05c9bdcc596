// Package env loads the project's .env file into the process environment,
// where configuration picks up JAMPASS_* overrides.
package env

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/conneroisu/jampass/internal/errors"
)

// FileName is the dotenv file looked up in the project root
const FileName = ".env"

// Load reads path into the environment without overriding variables that
// are already set. A missing file is not an error. The loaded key/value
// pairs are returned.
func Load(path string) (map[string]string, error) {
	return load(path, godotenv.Load)
}

// Reload reads path into the environment, overriding existing values. Watch
// mode uses it after the file was edited.
func Reload(path string) (map[string]string, error) {
	return load(path, godotenv.Overload)
}

func load(path string, apply func(...string) error) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid dotenv file").
			WithLocation(path, 0).
			WithCause(err)
	}

	if err := apply(path); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeReadFailed, "failed to load dotenv file", err).
			WithLocation(path, 0)
	}

	return values, nil
}

// IsEnvFile reports whether path is a dotenv file such as .env or
// .env.local
func IsEnvFile(path string) bool {
	base := filepath.Base(path)
	return base == FileName || strings.HasPrefix(base, FileName+".")
}
