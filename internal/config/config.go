package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "PACKINGLINE_CONFIG"

// Trigger group names with a built-in extraction protocol.
const (
	GroupProduct  = "product"
	GroupControl4 = "control4"
	GroupMy2N     = "my2n"
)

var canonicalGroups = []string{GroupProduct, GroupControl4, GroupMy2N}

// Station identifies the packing station.
type Station struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// Paths holds the shared directories and files the station works with.
type Paths struct {
	Reports     string `yaml:"reports"`
	Orders      string `yaml:"orders"`
	Triggers    string `yaml:"triggers"`
	Credentials string `yaml:"credentials"`
	State       string `yaml:"state"`
}

// Outputs holds the label data files read by the printing suite.
type Outputs struct {
	Product  string `yaml:"product"`
	Control4 string `yaml:"control4"`
	My2N     string `yaml:"my2n"`
}

// Login bounds failed login attempts per station.
type Login struct {
	MaxFailures int           `yaml:"max_failures"`
	Window      time.Duration `yaml:"window"`
}

// Logging sets rotation of the app.json and app.txt log files. Each file
// rotates at MaxSizeMB and keeps MaxBackups old copies; MaxAgeDays of 0
// keeps them regardless of age.
type Logging struct {
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// Products is a list of product identifiers. In YAML it is either a
// sequence or a single comma-separated string.
type Products []string

// UnmarshalYAML accepts both list and comma-separated forms.
func (p *Products) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*p = splitProducts(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		var out Products
		for _, item := range items {
			out = append(out, splitProducts(item)...)
		}
		*p = out
		return nil
	default:
		return fmt.Errorf("line %d: products must be a list or a comma-separated string", node.Line)
	}
}

func splitProducts(raw string) Products {
	var out Products
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Config is the station configuration.
type Config struct {
	Station        Station             `yaml:"station"`
	Paths          Paths               `yaml:"paths"`
	Outputs        Outputs             `yaml:"outputs"`
	TriggerMapping map[string]Products `yaml:"trigger_mapping"`
	Login          Login               `yaml:"login"`
	Logging        Logging             `yaml:"logging"`
}

// DefaultStateDir returns the default directory for audit, journal, and lock files.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "packingline")
	}
	return filepath.Join(home, ".packingline")
}

// DefaultPath returns the config file location: $PACKINGLINE_CONFIG or
// ~/.packingline/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(DefaultStateDir(), "config.yaml")
}

// DefaultConfig returns the built-in configuration of a packing line.
func DefaultConfig() *Config {
	return &Config{
		Station: Station{
			ID:    "line-1",
			Title: "2N IP Verso 2.0",
		},
		Paths: Paths{
			Reports:     "T:/reporty/",
			Orders:      "T:/Prikazy/",
			Triggers:    "T:/Prikazy/DataTPV/Spoustece/",
			Credentials: "T:/Prikazy/DataTPV/SZV.dat",
			State:       DefaultStateDir(),
		},
		Outputs: Outputs{
			Product:  "T:/Prikazy/DataTPV/Etikety/02 product.txt",
			Control4: "T:/Prikazy/DataTPV/Etikety/C4-SMART.txt",
			My2N:     "T:/Prikazy/DataTPV/Etikety/my2n.txt",
		},
		TriggerMapping: defaultTriggerMapping(),
		Login: Login{
			MaxFailures: 5,
			Window:      5 * time.Minute,
		},
		Logging: Logging{
			MaxSizeMB:  1,
			MaxBackups: 5,
		},
	}
}

func defaultTriggerMapping() map[string]Products {
	return map[string]Products{
		GroupProduct:  {"9155211", "9155211B", "9155211C", "9155211CB", "9155211C-C4", "9155211CB-C4"},
		GroupControl4: {"9155211C-C4", "9155211CB-C4"},
		GroupMy2N:     {"9155211", "9155211B", "9155211C", "9155211CB"},
	}
}

// LoadConfig loads configuration from a YAML file.
// Empty path falls back to DefaultPath(). Missing file returns defaults.
// Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns the SHA-256 hash of
// the raw file. When no file exists the hash is that of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, "", err
	}
	return cfg, hashBytes(data), nil
}

// Parse decodes YAML on top of the defaults. A trigger_mapping section
// replaces the default mapping as a whole.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	cfg.TriggerMapping = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.TriggerMapping == nil {
		cfg.TriggerMapping = defaultTriggerMapping()
	}
	if cfg.Paths.State == "" {
		cfg.Paths.State = DefaultStateDir()
	}
	return cfg, nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

// TriggerGroupsFor returns the trigger groups that list product.
// Known groups come first in the order product, control4, my2n; other
// group names follow alphabetically. Product ids match exactly after trimming.
func (c *Config) TriggerGroupsFor(product string) []string {
	product = strings.TrimSpace(product)
	if product == "" {
		return nil
	}

	var groups []string
	seen := make(map[string]bool)
	for _, g := range canonicalGroups {
		if containsProduct(c.TriggerMapping[g], product) {
			groups = append(groups, g)
		}
		seen[g] = true
	}

	var extra []string
	for g, products := range c.TriggerMapping {
		if seen[g] {
			continue
		}
		if containsProduct(products, product) {
			extra = append(extra, g)
		}
	}
	sort.Strings(extra)
	return append(groups, extra...)
}

func containsProduct(products Products, product string) bool {
	for _, p := range products {
		if strings.TrimSpace(p) == product {
			return true
		}
	}
	return false
}

// StateFile returns name inside the state directory.
func (c *Config) StateFile(name string) string {
	return filepath.Join(c.Paths.State, name)
}

// PathProblem describes a configured path that cannot be used.
type PathProblem struct {
	Key  string
	Path string
	Err  error
}

func (p PathProblem) String() string {
	return fmt.Sprintf("%s: %s: %v", p.Key, p.Path, p.Err)
}

// ValidatePaths stats every path the station reads from. Output files are
// created on demand and are checked by their parent directory only.
func (c *Config) ValidatePaths() []PathProblem {
	checks := []struct {
		key  string
		path string
	}{
		{"paths.reports", c.Paths.Reports},
		{"paths.orders", c.Paths.Orders},
		{"paths.triggers", c.Paths.Triggers},
		{"paths.credentials", c.Paths.Credentials},
		{"outputs.product", filepath.Dir(c.Outputs.Product)},
		{"outputs.control4", filepath.Dir(c.Outputs.Control4)},
		{"outputs.my2n", filepath.Dir(c.Outputs.My2N)},
	}

	var problems []PathProblem
	for _, ch := range checks {
		if strings.TrimSpace(ch.path) == "" || ch.path == "." {
			problems = append(problems, PathProblem{Key: ch.key, Path: ch.path, Err: errors.New("not configured")})
			continue
		}
		if _, err := os.Stat(ch.path); err != nil {
			problems = append(problems, PathProblem{Key: ch.key, Path: ch.path, Err: err})
		}
	}
	return problems
}

// DefaultConfigYAML returns a commented YAML string for init-config.
func DefaultConfigYAML() string {
	return `# packingline station configuration
# Generated by: packingline init-config

station:
  id: line-1
  title: "2N IP Verso 2.0"

# Shared directories. Relative paths resolve against the working directory.
paths:
  # Test reports, laid out as <reports>/20yy/<block>/<block><seq>.yy
  reports: "T:/reporty/"
  # Work orders: <code>.nor and <code>.lbl
  orders: "T:/Prikazy/"
  # Trigger files watched by the label printing suite
  triggers: "T:/Prikazy/DataTPV/Spoustece/"
  # Obfuscated operator credential file
  credentials: "T:/Prikazy/DataTPV/SZV.dat"
  # Audit log, print journal, lock and log files (default ~/.packingline)
  # state: /var/lib/packingline

# Label data files, rewritten on every print.
outputs:
  product: "T:/Prikazy/DataTPV/Etikety/02 product.txt"
  control4: "T:/Prikazy/DataTPV/Etikety/C4-SMART.txt"
  my2n: "T:/Prikazy/DataTPV/Etikety/my2n.txt"

# Trigger group -> product ids. Groups print in the order product,
# control4, my2n. A comma-separated string is accepted too.
trigger_mapping:
  product: ["9155211", "9155211B", "9155211C", "9155211CB", "9155211C-C4", "9155211CB-C4"]
  control4: ["9155211C-C4", "9155211CB-C4"]
  my2n: "9155211, 9155211B, 9155211C, 9155211CB"

# Failed login attempts allowed per window before the station refuses logins.
login:
  max_failures: 5
  window: 5m

# Rotation of app.json and app.txt under <state>/logs.
logging:
  max_size_mb: 1
  max_backups: 5
  max_age_days: 0
  compress: false
`
}
