package params

import (
	"fmt"
	"strings"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// ParseKeyValuePairs converts "key=value" strings into a map. The first '='
// splits; later ones belong to the value. flag names the option in errors.
//
//	ParseKeyValuePairs([]string{"region=emea", "batch=2024-Q1"}, "--set")
func ParseKeyValuePairs(pairs []string, flag string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%s %q is not in key=value format: %w", flag, pair, pgstitch.ErrInvalidConfig)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("%s %q has an empty key: %w", flag, pair, pgstitch.ErrInvalidConfig)
		}
		result[key] = value
	}

	return result, nil
}

// ParseRename parses --rename old=new pairs. Both sides must be non-empty
// and no two names may be renamed to the same target.
func ParseRename(pairs []string) (map[string]string, error) {
	m, err := ParseKeyValuePairs(pairs, "--rename")
	if err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(m))
	for from, to := range m {
		to = strings.TrimSpace(to)
		if to == "" {
			return nil, fmt.Errorf("--rename %q has an empty new name: %w", from, pgstitch.ErrInvalidConfig)
		}
		if prev, dup := targets[to]; dup {
			return nil, fmt.Errorf("--rename maps both %q and %q to %q: %w", prev, from, to, pgstitch.ErrInvalidConfig)
		}
		targets[to] = from
		m[from] = to
	}
	return m, nil
}
