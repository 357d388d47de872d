// Package structured implements format-aware, format-preserving deep
// merge for JSON, YAML, TOML, and INI. Each backend
// uses the library this codebase's dependency stack reaches for:
// gopkg.in/yaml.v3 for YAML (teacher), github.com/BurntSushi/toml for
// TOML (teacher), gopkg.in/ini.v1 for INI (pack: githubnext-gh-aw).
package structured

import (
	"path/filepath"
	"strings"
)

// Format is the detected structured-data format of a file.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatTOML    Format = "toml"
	FormatINI     Format = "ini"
	FormatUnknown Format = ""
)

// DetectFormat determines a file's format by extension first, then by
// a light content sniff if the extension is ambiguous or absent.
// Unknown formats fall back to the three-way text merge path (the
// caller is expected to check for FormatUnknown and dispatch there).
func DetectFormat(path string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".ini", ".cfg", ".conf":
		return FormatINI
	}
	return sniff(content)
}

// sniff makes a best-effort guess from content alone when the
// extension doesn't tell us anything.
func sniff(content []byte) Format {
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return FormatUnknown
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return FormatJSON
	}
	if strings.Contains(trimmed, "\n[") || strings.HasPrefix(trimmed, "[") {
		// TOML tables look like "[section]" on their own line, same as
		// INI sections; disambiguate below by looking for "key = value"
		// with a TOML-style typed value (quotes, numbers) vs bare INI text.
	}
	if looksLikeINISection(trimmed) && !strings.Contains(trimmed, "= \"") && !looksLikeTOMLValue(trimmed) {
		return FormatINI
	}
	if strings.Contains(trimmed, ": ") || strings.Contains(trimmed, ":\n") {
		return FormatYAML
	}
	return FormatUnknown
}

func looksLikeINISection(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			return true
		}
	}
	return false
}

func looksLikeTOMLValue(s string) bool {
	return strings.Contains(s, "= [") || strings.Contains(s, "= {")
}
