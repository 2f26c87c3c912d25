package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	SSLCert        string `yaml:"sslcert,omitempty"`
	SSLKey         string `yaml:"sslkey,omitempty"`
	SSLRootCert    string `yaml:"sslrootcert,omitempty"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// ProjectConfig is the content of pgstitch.yaml. Every field is optional;
// CLI flags override what is set here.
type ProjectConfig struct {
	Connection      ConnectionConfig  `yaml:"connection"`
	Table           string            `yaml:"table"`
	IfExists        string            `yaml:"if_exists"`
	ChunkRows       int               `yaml:"chunk_rows"`
	Delimiter       string            `yaml:"delimiter"`
	AddFilename     bool              `yaml:"add_filename"`
	FilenameColumn  string            `yaml:"filename_column"`
	DiscoverWorkers int               `yaml:"discover_workers"`
	Rename          map[string]string `yaml:"rename"`
	Params          map[string]string `yaml:"params"`
	Timeout         string            `yaml:"timeout"`
	LogFormat       string            `yaml:"log_format"`
}

const ConfigFileName = pgstitch.ConfigFileName

// Load reads pgstitch.yaml from dir.
func Load(dir string) (*ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a project config from an explicit path.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// TimeoutDuration parses Timeout. Zero means unset.
func (c *ProjectConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q in %s: %w", c.Timeout, ConfigFileName, pgstitch.ErrInvalidConfig)
	}
	return d, nil
}

// DelimiterRune returns the configured delimiter, or 0 when unset.
func (c *ProjectConfig) DelimiterRune() (rune, error) {
	return ParseDelimiter(c.Delimiter)
}

// ParseDelimiter accepts a single character or the names "tab", "\t".
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("delimiter must be a single character, got %q: %w", s, pgstitch.ErrInvalidConfig)
	}
	return r, nil
}
