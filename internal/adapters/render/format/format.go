// Package format encodes command results for --output.
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	JSON  = "json"
	YAML  = "yaml"
	TOML  = "toml"
	Table = "table"
)

var ErrTOMLNeedsObject = errors.New("toml output needs a JSON object")

// Names lists the accepted --output values.
func Names() []string {
	return []string{JSON, YAML, TOML, Table}
}

// Normalize lower-cases name and maps "" and "yml" onto their canonical
// formats.
func Normalize(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "":
		return JSON
	case "yml":
		return YAML
	default:
		return n
	}
}

// Encode writes value to w. Table output is not an encoding and is rejected.
func Encode(w io.Writer, name string, value any) error {
	switch Normalize(name) {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case TOML:
		if _, ok := value.(map[string]any); !ok {
			return ErrTOMLNeedsObject
		}
		if err := toml.NewEncoder(w).Encode(value); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", name)
	}
}
