package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultAPIURL = "http://localhost:8080"

const tokenFileName = ".signin_token"

// APIURL returns the base URL for the sign-in API.
// It can be overridden with the SIGNIN_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("SIGNIN_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}

// TokenPath is where the bearer token is kept (SIGNIN_TOKEN_FILE or ~/.signin_token).
func TokenPath() string {
	if v := os.Getenv("SIGNIN_TOKEN_FILE"); v != "" {
		return v
	}
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, tokenFileName)
}

func SaveToken(token string) error {
	return os.WriteFile(TokenPath(), []byte(token), 0o600)
}

func LoadToken() (string, error) {
	data, err := os.ReadFile(TokenPath())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// RemoveToken deletes the stored token. A missing file is not an error.
func RemoveToken() error {
	err := os.Remove(TokenPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
