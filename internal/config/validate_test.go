package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Targets = []string{"10.0.0.0/24"}
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := validate(cfg); err != nil {
		t.Fatalf("validate valid config: %v", err)
	}
}

func TestValidate_EmptyTargets(t *testing.T) {
	cfg := validConfig()
	cfg.Targets = nil

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty targets")
	}
	if !strings.Contains(err.Error(), "targets") {
		t.Errorf("error should mention targets: %v", err)
	}
}

func TestValidate_WindowsCredentialMissingUser(t *testing.T) {
	cfg := validConfig()
	cfg.Credentials.Windows = []WindowsCredentialConfig{
		{User: "", Secret: CredentialRef{Name: "winpass"}},
	}

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing windows credential user")
	}
}

func TestValidate_SSHCredentialMissingSecretAndKeyFile(t *testing.T) {
	cfg := validConfig()
	cfg.Credentials.SSH = []SSHCredentialConfig{
		{User: "admin"},
	}

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for ssh credential with neither secret nor key_file")
	}
}

func TestValidate_SSHCredentialKeyFileOnly(t *testing.T) {
	cfg := validConfig()
	cfg.Credentials.SSH = []SSHCredentialConfig{
		{User: "admin", KeyFile: "/etc/discovery/id_rsa"},
	}

	if err := validate(cfg); err != nil {
		t.Errorf("key_file alone should satisfy an ssh credential: %v", err)
	}
}

func TestValidate_SNMPv3BadAuthProto(t *testing.T) {
	cfg := validConfig()
	cfg.Credentials.SNMPv3 = []SNMPv3Config{
		{User: "snmpuser", AuthProto: "CRC32"},
	}

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid auth_proto")
	}
	if !strings.Contains(err.Error(), "auth_proto") {
		t.Errorf("error should mention auth_proto: %v", err)
	}
}

func TestValidate_SNMPv3BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Credentials.SNMPv3 = []SNMPv3Config{
		{User: "snmpuser", Port: 70000},
	}

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for out-of-range snmp v3 port")
	}
}

func TestValidate_BadPoolSizes(t *testing.T) {
	cfg := validConfig()
	cfg.PoolSizes.Liveness = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero liveness pool size")
	}
	if !strings.Contains(err.Error(), "pool_sizes.liveness") {
		t.Errorf("error should mention pool_sizes.liveness: %v", err)
	}
}

func TestValidate_BadTimeouts(t *testing.T) {
	cfg := validConfig()
	cfg.Timeouts.ICMPMs = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero icmp_ms")
	}
}

func TestValidate_NegativeSNMPRetries(t *testing.T) {
	cfg := validConfig()
	cfg.Timeouts.SNMPRetries = -1

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative snmp_retries")
	}
}

func TestValidate_NegativeMaxRetries(t *testing.T) {
	cfg := validConfig()
	cfg.MaxRetries = -1

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative max_retries")
	}
}

func TestValidate_EmptyStorePath(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Path = ""

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty store.path")
	}
}

func TestValidate_BadStoreRetention(t *testing.T) {
	cfg := validConfig()
	cfg.Store.RetentionDays = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero store.retention_days")
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("error should mention logging.level: %v", err)
	}
}

func TestValidate_TracingBadExporter(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "carrier-pigeon"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid tracing exporter")
	}
}

func TestValidate_TracingSampleRateOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.SampleRate = 1.5

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for sample_rate > 1")
	}
}

func TestValidate_NegativeCacheSize(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.ClassifySize = -1

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative cache.classify_size")
	}
}

func TestValidate_StatusServerBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.StatusServer.Enabled = true
	cfg.StatusServer.Port = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for status_server.port = 0")
	}
}

func TestValidate_ScanBudgetZeroLimitWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.ScanBudget.Enabled = true
	cfg.ScanBudget.DailyLimit = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for scan_budget.daily_limit = 0 while enabled")
	}
}

func TestValidate_ScanBudgetDisabledAllowsZeroLimit(t *testing.T) {
	cfg := validConfig()
	cfg.ScanBudget.Enabled = false
	cfg.ScanBudget.DailyLimit = 0

	if err := validate(cfg); err != nil {
		t.Errorf("expected no error when scan_budget is disabled, got %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Targets = nil
	cfg.PoolSizes.Liveness = 0
	cfg.Logging.Level = "bad"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "targets") || !strings.Contains(errStr, "logging.level") {
		t.Errorf("error should mention multiple fields: %v", err)
	}
}

func TestIsValidEnum(t *testing.T) {
	if !isValidEnum("INFO", ValidLogLevels) {
		t.Error("INFO should be valid (case-insensitive)")
	}
	if isValidEnum("verbose", ValidLogLevels) {
		t.Error("verbose should not be valid")
	}
}
