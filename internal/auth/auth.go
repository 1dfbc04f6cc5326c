// Package auth resolves provider API keys and classifies credential errors.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const credentialDir = ".prompt-enhancer"

// ErrNoKey is returned when no source holds a key for the provider.
var ErrNoKey = errors.New("API key not found")

// Key sources for the supported vendors.
type keySource struct {
	envVar string
	file   string
}

var keySources = map[string]keySource{
	"gemini": {envVar: "GEMINI_API_KEY", file: "gemini.gpg"},
	"openai": {envVar: "OPENAI_API_KEY", file: "openai.gpg"},
}

// GetAPIKey retrieves the API key for vendor ("gemini" or "openai").
// Priority order:
//  1. The vendor's environment variable (GEMINI_API_KEY / OPENAI_API_KEY)
//  2. GPG-encrypted file at ~/.prompt-enhancer/<vendor>.gpg
func GetAPIKey(vendor string) (string, error) {
	src, ok := keySources[strings.ToLower(vendor)]
	if !ok {
		return "", fmt.Errorf("unknown vendor %q", vendor)
	}

	if key := strings.TrimSpace(os.Getenv(src.envVar)); key != "" {
		log.Debug().Str("vendor", vendor).Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromGPG(src.file)
	if err == nil && key != "" {
		log.Debug().Str("vendor", vendor).Msg("Using API key from GPG encrypted file")
		return key, nil
	}

	log.Debug().Err(err).Str("vendor", vendor).Msg("No API key available")
	return "", fmt.Errorf("%w: set %s or create ~/%s/%s", ErrNoKey, src.envVar, credentialDir, src.file)
}

// getFromGPG decrypts a key from a GPG-encrypted file in the credential directory.
func getFromGPG(file string) (string, error) {
	credPath, err := getCredentialPath(file)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet", "--batch"}
	if passphrasePath, ok := passphraseFile(); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
	}
	args = append(args, credPath)

	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the full path to a credentials file.
func getCredentialPath(file string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, file), nil
}

// passphraseFile returns ~/.prompt-enhancer/.gpg-passphrase when it exists
// and is readable by the owner only.
func passphraseFile() (string, bool) {
	path, err := getCredentialPath(".gpg-passphrase")
	if err != nil {
		return "", false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if mode := fi.Mode().Perm(); mode&0077 != 0 {
		log.Warn().
			Str("passphrase_file", path).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Passphrase file has insecure permissions (should be 0600); skipping")
		return "", false
	}
	return path, true
}
