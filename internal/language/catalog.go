// Package language holds the per-user interface language preference and the
// message catalog every reply is rendered from.
package language

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported interface languages.
const (
	English = "en"
	Russian = "ru"
)

//go:embed messages.yaml
var messagesYAML []byte

// Normalize maps any language code onto a catalog set: codes starting with
// "ru" select Russian, everything else English.
func Normalize(code string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(code)), Russian) {
		return Russian
	}
	return English
}

// Supported reports whether code names a catalog set exactly.
func Supported(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	return code == English || code == Russian
}

// Catalog is a read-only table of message templates keyed by language and
// message key. Templates use fmt verbs.
type Catalog struct {
	sets map[string]map[string]string
}

// LoadCatalog parses the embedded message tables.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(messagesYAML)
}

// ParseCatalog parses a YAML document of the form {lang: {key: template}}.
func ParseCatalog(data []byte) (*Catalog, error) {
	var sets map[string]map[string]string
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("parsing message catalog: %w", err)
	}
	if _, ok := sets[English]; !ok {
		return nil, fmt.Errorf("message catalog has no %q set", English)
	}
	return &Catalog{sets: sets}, nil
}

// Text renders key in lang. Missing keys fall back to English and then to
// the key itself.
func (c *Catalog) Text(lang, key string, args ...any) string {
	tmpl, ok := c.sets[Normalize(lang)][key]
	if !ok {
		tmpl, ok = c.sets[English][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return strings.TrimRight(tmpl, "\n")
	}
	return strings.TrimRight(fmt.Sprintf(tmpl, args...), "\n")
}

// Keys lists the message keys defined for lang.
func (c *Catalog) Keys(lang string) []string {
	set := c.sets[lang]
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}
