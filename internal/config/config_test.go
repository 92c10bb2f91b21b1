package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Paths.Reports != "T:/reporty/" {
		t.Errorf("expected default reports path, got %q", cfg.Paths.Reports)
	}
	if cfg.Login.MaxFailures != 5 {
		t.Errorf("expected MaxFailures=5, got %d", cfg.Login.MaxFailures)
	}
	if len(cfg.TriggerMapping) != 3 {
		t.Errorf("expected 3 default trigger groups, got %d", len(cfg.TriggerMapping))
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Outputs.My2N != DefaultConfig().Outputs.My2N {
		t.Errorf("expected default my2n output, got %q", cfg.Outputs.My2N)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "paths: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := writeConfig(t, `
paths:
  reports: /srv/reports
login:
  window: 90s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.Reports != "/srv/reports" {
		t.Errorf("reports = %q", cfg.Paths.Reports)
	}
	if cfg.Paths.Orders != DefaultConfig().Paths.Orders {
		t.Errorf("orders should keep default, got %q", cfg.Paths.Orders)
	}
	if cfg.Login.Window != 90*time.Second {
		t.Errorf("window = %v", cfg.Login.Window)
	}
	if cfg.Login.MaxFailures != 5 {
		t.Errorf("max_failures should keep default, got %d", cfg.Login.MaxFailures)
	}
	if len(cfg.TriggerMapping) != 3 {
		t.Errorf("default trigger mapping expected when section absent")
	}
}

func TestLoggingRotation(t *testing.T) {
	def := DefaultConfig().Logging
	if def.MaxSizeMB != 1 || def.MaxBackups != 5 {
		t.Errorf("default rotation = %+v, want 1 MB x 5 backups", def)
	}

	path := writeConfig(t, `
logging:
  max_size_mb: 10
  compress: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.MaxSizeMB != 10 || !cfg.Logging.Compress {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Logging.MaxBackups != 5 {
		t.Errorf("max_backups should keep default, got %d", cfg.Logging.MaxBackups)
	}
}

func TestTriggerMappingReplacesDefaults(t *testing.T) {
	path := writeConfig(t, `
trigger_mapping:
  product: "A1, B2 ,,C3"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.TriggerMapping) != 1 {
		t.Fatalf("expected only configured group, got %v", cfg.TriggerMapping)
	}
	got := cfg.TriggerMapping[GroupProduct]
	if len(got) != 3 || got[0] != "A1" || got[1] != "B2" || got[2] != "C3" {
		t.Errorf("legacy comma form parsed as %q", got)
	}
}

func TestTriggerMappingRejectsMapping(t *testing.T) {
	path := writeConfig(t, `
trigger_mapping:
  product:
    a: b
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for mapping value")
	}
}

func TestTriggerGroupsForCanonicalOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TriggerMapping = map[string]Products{
		"zeta":        {"P1"},
		GroupMy2N:     {"P1"},
		"alpha":       {"P1"},
		GroupProduct:  {"P1", "P2"},
		GroupControl4: {"P2"},
	}

	got := cfg.TriggerGroupsFor(" P1 ")
	want := []string{GroupProduct, GroupMy2N, "alpha", "zeta"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTriggerGroupsForDefaults(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		product string
		want    string
	}{
		{"9155211", "product,my2n"},
		{"9155211C-C4", "product,control4"},
		{"9155211c-c4", ""},
		{"unknown", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := strings.Join(cfg.TriggerGroupsFor(tt.product), ","); got != tt.want {
			t.Errorf("TriggerGroupsFor(%q) = %q, want %q", tt.product, got, tt.want)
		}
	}
}

func TestLoadConfigWithHash(t *testing.T) {
	path := writeConfig(t, "station:\n  title: Line 2\n")
	cfg, hash, err := LoadConfigWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Station.Title != "Line 2" {
		t.Errorf("title = %q", cfg.Station.Title)
	}
	if !strings.HasPrefix(hash, "sha256:") || len(hash) != len("sha256:")+64 {
		t.Errorf("unexpected hash %q", hash)
	}

	_, again, err := LoadConfigWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if again != hash {
		t.Error("hash must be stable for identical content")
	}

	if err := os.WriteFile(path, []byte("station:\n  title: Line 3\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, changed, err := LoadConfigWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if changed == hash {
		t.Error("hash must change with content")
	}
}

func TestDefaultConfigYAMLParses(t *testing.T) {
	cfg, err := Parse([]byte(DefaultConfigYAML()))
	if err != nil {
		t.Fatalf("generated config does not parse: %v", err)
	}
	def := DefaultConfig()
	if cfg.Paths.Credentials != def.Paths.Credentials {
		t.Errorf("credentials = %q", cfg.Paths.Credentials)
	}
	if cfg.Paths.State != def.Paths.State {
		t.Errorf("state should default, got %q", cfg.Paths.State)
	}
	for group, products := range def.TriggerMapping {
		if strings.Join(cfg.TriggerMapping[group], ",") != strings.Join(products, ",") {
			t.Errorf("group %s = %v, want %v", group, cfg.TriggerMapping[group], products)
		}
	}
}

func TestDefaultPathHonorsEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/packingline.yaml")
	if got := DefaultPath(); got != "/etc/packingline.yaml" {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestValidatePaths(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"reports", "orders", "triggers", "labels"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0750); err != nil {
			t.Fatal(err)
		}
	}
	creds := filepath.Join(dir, "SZV.dat")
	if err := os.WriteFile(creds, nil, 0600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Paths.Reports = filepath.Join(dir, "reports")
	cfg.Paths.Orders = filepath.Join(dir, "orders")
	cfg.Paths.Triggers = filepath.Join(dir, "triggers")
	cfg.Paths.Credentials = creds
	cfg.Outputs.Product = filepath.Join(dir, "labels", "product.txt")
	cfg.Outputs.Control4 = filepath.Join(dir, "labels", "c4.txt")
	cfg.Outputs.My2N = filepath.Join(dir, "labels", "my2n.txt")

	if problems := cfg.ValidatePaths(); len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}

	cfg.Paths.Triggers = filepath.Join(dir, "missing")
	cfg.Outputs.My2N = ""
	problems := cfg.ValidatePaths()
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", problems)
	}
	if problems[0].Key != "paths.triggers" || problems[1].Key != "outputs.my2n" {
		t.Errorf("unexpected keys: %v", problems)
	}
}
