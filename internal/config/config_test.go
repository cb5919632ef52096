package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_WithExplicitFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test.toml")

	content := `
targets = ["10.0.0.0/24", "192.168.1.1"]

[pool_sizes]
liveness = 50
classify = 10
collect = 5

[logging]
level = "debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Targets) != 2 || cfg.Targets[0] != "10.0.0.0/24" {
		t.Errorf("Targets: got %v", cfg.Targets)
	}
	if cfg.PoolSizes.Liveness != 50 {
		t.Errorf("PoolSizes.Liveness: got %d, want 50", cfg.PoolSizes.Liveness)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test.toml")

	content := `
targets = ["10.0.0.1"]

[pool_sizes]
liveness = 100
classify = 20
collect = 15
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("DISCOVERY_MAX_RETRIES", "9")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxRetries != 9 {
		t.Errorf("MaxRetries with env override: got %d, want 9", cfg.MaxRetries)
	}
}

func TestLoad_ValidationFailure_NoTargets(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.toml")

	content := `
targets = []
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for empty targets")
	}
}

func TestLoad_ValidationFailure_BadPoolSize(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.toml")

	content := `
targets = ["10.0.0.1"]

[pool_sizes]
liveness = 0
classify = 20
collect = 15
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for zero liveness pool size")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.PoolSizes.Liveness != DefaultLivenessPoolSize {
		t.Errorf("PoolSizes.Liveness: got %d, want %d", cfg.PoolSizes.Liveness, DefaultLivenessPoolSize)
	}
	if cfg.PoolSizes.Classify != DefaultClassifyPoolSize {
		t.Errorf("PoolSizes.Classify: got %d, want %d", cfg.PoolSizes.Classify, DefaultClassifyPoolSize)
	}
	if cfg.PoolSizes.Collect != DefaultCollectPoolSize {
		t.Errorf("PoolSizes.Collect: got %d, want %d", cfg.PoolSizes.Collect, DefaultCollectPoolSize)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries: got %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
}

func TestTimeoutsConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()

	if got, want := cfg.Timeouts.ICMPTimeout().Milliseconds(), int64(DefaultICMPMs); got != want {
		t.Errorf("ICMPTimeout: got %dms, want %dms", got, want)
	}
	if got, want := cfg.Timeouts.SSHConnectTimeout().Seconds(), float64(DefaultSSHConnectSec); got != want {
		t.Errorf("SSHConnectTimeout: got %vs, want %vs", got, want)
	}
}

func TestPoolQueueCap(t *testing.T) {
	if got, want := PoolQueueCap(20), 80; got != want {
		t.Errorf("PoolQueueCap(20): got %d, want %d", got, want)
	}
	if got, want := PoolQueueCap(0), 4; got != want {
		t.Errorf("PoolQueueCap(0): got %d, want %d", got, want)
	}
}

func TestConfigFilePath_BeforeLoad(t *testing.T) {
	loadedConfigFile.Store("")
	path := ConfigFilePath()
	if path != "" {
		t.Errorf("ConfigFilePath before load: got %q, want empty", path)
	}
}

func TestExportConfig(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "exported.toml")

	cfg := DefaultConfig()
	cfg.Targets = []string{"10.0.0.1"}
	set(cfg)

	if err := ExportConfig(exportPath); err != nil {
		t.Fatalf("ExportConfig: %v", err)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("exported config is empty")
	}
}

func TestImportConfig(t *testing.T) {
	dir := t.TempDir()
	importPath := filepath.Join(dir, "import.toml")

	content := `
targets = ["172.16.0.0/24"]

[logging]
level = "warn"
`
	if err := os.WriteFile(importPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ImportConfig(importPath); err != nil {
		t.Fatalf("ImportConfig: %v", err)
	}

	cfg := Get()
	if len(cfg.Targets) != 1 || cfg.Targets[0] != "172.16.0.0/24" {
		t.Errorf("Targets after import: got %v", cfg.Targets)
	}

	set(DefaultConfig())
}
