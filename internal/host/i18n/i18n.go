// Package i18n supplies dictionary-backed translation for the user-facing
// strings a block tool emits. Dictionaries are flat message-to-message YAML
// maps; unknown messages pass through unchanged.
package i18n

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dictionary maps source messages to localized text. The zero value and nil
// both translate every message to itself.
type Dictionary struct {
	entries map[string]string
}

// New builds a dictionary from an in-memory map. The map is copied.
func New(entries map[string]string) *Dictionary {
	copied := make(map[string]string, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &Dictionary{entries: copied}
}

// Parse reads a flat YAML mapping of source message to localized text.
func Parse(data []byte) (*Dictionary, error) {
	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("i18n: parse dictionary: %w", err)
	}
	return New(entries), nil
}

// Load reads a dictionary file. A missing file yields an empty dictionary so
// callers can point at an optional locale path.
func Load(path string) (*Dictionary, error) {
	if strings.TrimSpace(path) == "" {
		return New(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("i18n: read dictionary: %w", err)
	}
	return Parse(data)
}

// Translate resolves message through the dictionary, falling back to the
// message itself.
func (d *Dictionary) Translate(message string) string {
	if d == nil {
		return message
	}
	if localized, ok := d.entries[message]; ok && localized != "" {
		return localized
	}
	return message
}

// Len reports the number of known messages.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
