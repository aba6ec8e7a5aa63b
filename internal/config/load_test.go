package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `{
  "main": {
    "source": {"host": "src.internal", "port": 3306, "driver": "mysql", "username": "repl", "password": "x"},
    "target": {"host": "dst.internal", "port": 5432, "driver": "postgres", "username": "loader", "password": "y"},
    "batch_size": 5000,
    "databases": [
      {"source": "^shard_\\d+$", "naming_strategy": "original", "dynamic_tables": "^lookup$", "order_by": "UpdatedAt"}
    ]
  }
}`

func TestLoadValid(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	scheme, ok := cfg["main"]
	if !ok {
		t.Fatalf("missing scheme %q", "main")
	}
	if scheme.BatchSize != 5000 {
		t.Errorf("BatchSize = %d, want 5000", scheme.BatchSize)
	}
	if len(scheme.Databases) != 1 {
		t.Fatalf("Databases = %d, want 1", len(scheme.Databases))
	}
	rule := scheme.Databases[0]
	if rule.OrderBy != "UpdatedAt" {
		t.Errorf("OrderBy = %q, want UpdatedAt", rule.OrderBy)
	}
	if !rule.SourcePattern.MatchString("shard_7") {
		t.Errorf("SourcePattern did not match shard_7")
	}
}

func TestLoadDefaults(t *testing.T) {
	body := `{
  "main": {
    "source": {"host": "h", "port": 1, "driver": "sqlite", "username": "u", "password": ""},
    "target": {"host": "h2", "port": 2, "driver": "sqlite", "username": "u", "password": ""},
    "databases": [{"source": ".*"}]
  }
}`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	scheme := cfg["main"]
	if scheme.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want default %d", scheme.BatchSize, DefaultBatchSize)
	}
	if scheme.Databases[0].OrderBy != DefaultOrderBy {
		t.Errorf("OrderBy = %q, want default %q", scheme.Databases[0].OrderBy, DefaultOrderBy)
	}
	if scheme.Databases[0].NamingStrategy != NamingOriginal {
		t.Errorf("NamingStrategy = %q, want original", scheme.Databases[0].NamingStrategy)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	body := `{
  "main": {
    "source": {"host": "h", "port": 1, "driver": "sqlite", "username": "u", "password": "", "bogus": true},
    "target": {"host": "h2", "port": 2, "driver": "sqlite", "username": "u", "password": ""},
    "databases": [{"source": ".*"}]
  }
}`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("Load() error = nil, want error for unknown key")
	}
}

func TestValidateRejectsUnsupportedDriver(t *testing.T) {
	body := `{
  "main": {
    "source": {"host": "h", "port": 1, "driver": "sqlite", "username": "u"},
    "target": {"host": "h2", "port": 2, "driver": "sqlite", "username": "u"},
    "batch_size": 0,
    "databases": [{"source": ".*"}]
  }
}`
	// batch_size omitted (zero value) falls back to the default, so
	// craft a config that fails validation a different way instead:
	// an unsupported driver.
	_ = body
	bad := `{
  "main": {
    "source": {"host": "h", "port": 1, "driver": "oracle", "username": "u"},
    "target": {"host": "h2", "port": 2, "driver": "sqlite", "username": "u"},
    "databases": [{"source": ".*"}]
  }
}`
	_, err := Load(writeConfig(t, bad))
	if err == nil {
		t.Fatal("Load() error = nil, want unsupported driver error")
	}
	var verr *ValidationError
	if !asValidationError(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if verr.Scheme != "main" {
		t.Errorf("Scheme = %q, want main", verr.Scheme)
	}
}

func TestValidateRequiresExactTarget(t *testing.T) {
	bad := `{
  "main": {
    "source": {"host": "h", "port": 1, "driver": "sqlite", "username": "u"},
    "target": {"host": "h2", "port": 2, "driver": "sqlite", "username": "u"},
    "databases": [{"source": "^shard_\\d+$", "naming_strategy": "exact"}]
  }
}`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("Load() error = nil, want error: exact requires target")
	}
}

func asValidationError(err error, out **ValidationError) bool {
	verr, ok := err.(*ValidationError)
	if ok {
		*out = verr
	}
	return ok
}
