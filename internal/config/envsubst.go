package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches "${NAME}" references in the raw config text.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv replaces every "${NAME}" occurrence in raw with the value
// of the NAME environment variable. Returns an error naming every variable
// that is referenced but not set in the environment — the substitution is
// a deterministic pre-parse pass that fails fast rather than silently
// writing an empty string into the YAML document.
func substituteEnv(raw string) (string, error) {
	var missing []string
	seen := map[string]bool{}

	result := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			if !seen[name] {
				missing = append(missing, name)
				seen[name] = true
			}
			return match
		}
		return val
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved environment variable(s) in config: %s", strings.Join(missing, ", "))
	}
	return result, nil
}
