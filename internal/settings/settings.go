// Package settings persists the small amount of client configuration that
// survives restarts, currently just the credential token issued at
// registration.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Settings struct {
	CredentialToken string `mapstructure:"credential_token"`
}

// Registered reports whether a credential token is stored.
func (s Settings) Registered() bool { return s.CredentialToken != "" }

// DefaultPath returns the settings file location under the user config
// directory, creating the parent directory if needed.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("settings: %w", err)
	}
	dir := filepath.Join(base, "LeagueOfLeagues")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("settings: %w", err)
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

// Load reads the settings file. A missing file is not an error; it just
// means nothing has been saved yet.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("settings: read %s: %w", path, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return s, nil
}

func Save(path string, s Settings) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.Set("credential_token", s.CredentialToken)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("settings: write %s: %w", path, err)
	}
	return nil
}

// Delete removes the settings file, e.g. after the backend reports the
// stored credential is no longer registered.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("settings: delete %s: %w", path, err)
	}
	return nil
}
