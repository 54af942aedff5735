package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"
)

// Format is a configuration file syntax.
type Format string

const (
	// FormatYAML is the default syntax.
	FormatYAML Format = "yaml"
	// FormatTOML is selected by the .toml extension.
	FormatTOML Format = "toml"

	schemaURL = "ghd-config.schema.json"
)

// ErrSchema wraps schema violations.
var ErrSchema = errors.New("configuration does not match schema")

//go:embed schema.json
var schemaSource string

// configSchema is compiled once; the embedded document is part of the binary.
//
//nolint:gochecknoglobals // Immutable compiled schema.
var configSchema = jsonschema.MustCompileString(schemaURL, schemaSource)

// FormatOf picks the syntax from the file extension.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}

	return FormatYAML
}

// DefaultPath returns ~/.config/ghd/config.yaml, or config.toml next to it
// when only the TOML file exists.
func DefaultPath(home string) string {
	dir := filepath.Join(home, ".config", "ghd")
	yamlPath := filepath.Join(dir, "config.yaml")
	tomlPath := filepath.Join(dir, "config.toml")

	if _, err := os.Stat(yamlPath); err != nil {
		if _, err = os.Stat(tomlPath); err == nil {
			return tomlPath
		}
	}

	return yamlPath
}

// Load reads the file at path (DefaultPath when empty), validates it, applies
// defaults relative to home and validates the result.
func Load(path, home string) (*Config, error) {
	if path == "" {
		path = DefaultPath(home)
	}

	path = ExpandHome(path, home)

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg, err := Parse(contents, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ApplyDefaults(cfg, home)

	if err = Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse checks contents against the schema and decodes them.
// Defaults are not applied.
func Parse(contents []byte, format Format) (*Config, error) {
	document, err := toJSONDocument(contents, format)
	if err != nil {
		return nil, err
	}

	if err = configSchema.Validate(document); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	var cfg Config

	switch format {
	case FormatTOML:
		err = toml.Unmarshal(contents, &cfg)
	case FormatYAML:
		fallthrough
	default:
		err = yaml.Unmarshal(contents, &cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return &cfg, nil
}

// toJSONDocument converts contents into the generic JSON value the schema validator expects.
func toJSONDocument(contents []byte, format Format) (any, error) {
	var (
		data []byte
		err  error
	)

	switch format {
	case FormatTOML:
		raw := make(map[string]any)
		if err = toml.Unmarshal(contents, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}

		data, err = json.Marshal(raw)
	case FormatYAML:
		fallthrough
	default:
		data, err = k8syaml.YAMLToJSON(contents)
	}

	if err != nil {
		return nil, fmt.Errorf("convert settings to json: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var document any
	if err = decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("decode settings json: %w", err)
	}

	// An empty YAML file converts to null.
	if document == nil {
		document = map[string]any{}
	}

	return document, nil
}
