package params

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/joho/godotenv"

	"github.com/vvka-141/pgstitch/internal/reconcile"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// ParseEnvFile parses .env content: KEY=VALUE lines, # comments, quoted
// values and an optional "export " prefix.
func ParseEnvFile(content []byte) (map[string]string, error) {
	m, err := godotenv.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("invalid params file: %w", err)
	}
	return m, nil
}

// LoadEnvFiles reads .env files in order; a key in a later file overrides
// the same key in an earlier one.
func LoadEnvFiles(paths ...string) (map[string]string, error) {
	if len(paths) == 0 {
		return map[string]string{}, nil
	}
	m, err := godotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w: %w", err, pgstitch.ErrInvalidConfig)
	}
	return m, nil
}

// Sources lists where constant values come from, lowest precedence first.
type Sources struct {
	Files  []string          // --params-file
	Config map[string]string // params: in pgstitch.yaml
	Pairs  []string          // --set key=value
}

// Resolve merges all sources into one map.
func Resolve(src Sources) (map[string]string, error) {
	fromFiles, err := LoadEnvFiles(src.Files...)
	if err != nil {
		return nil, err
	}
	fromFlags, err := ParseKeyValuePairs(src.Pairs, "--set")
	if err != nil {
		return nil, err
	}
	return Merge(fromFiles, src.Config, fromFlags), nil
}

// Merge combines maps; later maps win on key collisions.
func Merge(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// Constants returns one constant column per key, sorted by key so runs
// are reproducible.
func Constants(values map[string]string) []reconcile.Constant {
	keys := slices.Sorted(maps.Keys(values))
	out := make([]reconcile.Constant, len(keys))
	for i, k := range keys {
		out[i] = reconcile.Constant{Name: k, Value: values[k]}
	}
	return out
}
