package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandEnv replaces environment references in s. ${VAR:-default} falls
// back to default when VAR is unset or empty.
func ExpandEnv(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]

			if name, def, ok := strings.Cut(inner, ":-"); ok {
				if val := os.Getenv(name); val != "" {
					return val
				}

				return def
			}

			return os.Getenv(inner)
		}

		return os.Getenv(match[1:])
	})
}

// expandNode expands every scalar of a YAML tree in place.
// Expanded plain scalars lose their tag so "${PORT}" can still decode into an int.
func expandNode(n *yaml.Node) {
	if n == nil {
		return
	}

	if n.Kind == yaml.ScalarNode {
		if v := ExpandEnv(n.Value); v != n.Value {
			n.Value = v
			if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) == 0 {
				n.Tag = ""
			}
		}

		return
	}

	for _, c := range n.Content {
		expandNode(c)
	}
}

// LoadDotEnv loads .env files without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}

		if _, err := os.Stat(p); err != nil {
			continue
		}

		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}

	return nil
}

// LoadDotEnvForConfig loads .env from the working directory and from the
// directory of configPath.
func LoadDotEnvForConfig(configPath string) error {
	paths := []string{".env"}

	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			if p := filepath.Join(filepath.Dir(abs), ".env"); p != paths[0] {
				paths = append(paths, p)
			}
		}
	}

	return LoadDotEnv(paths...)
}
