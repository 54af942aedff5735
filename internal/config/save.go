package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultFilePermissions is used for written settings; they contain a credential.
const DefaultFilePermissions = 0o600

// Save validates cfg and writes it to path in the syntax chosen by the extension.
func Save(path string, cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)

	switch FormatOf(path) {
	case FormatTOML:
		data, err = toml.Marshal(cfg)
	case FormatYAML:
		fallthrough
	default:
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	// Restrict permissions.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}
