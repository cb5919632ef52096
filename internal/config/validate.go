package config

import (
	"fmt"
	"strings"
)

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	if len(cfg.Targets) == 0 {
		errs = append(errs, "targets must not be empty")
	}

	// Credential validation
	for i, w := range cfg.Credentials.Windows {
		if w.User == "" {
			errs = append(errs, fmt.Sprintf("credentials.windows[%d].user must not be empty", i))
		}
		if w.Secret.Name == "" {
			errs = append(errs, fmt.Sprintf("credentials.windows[%d].secret.name must not be empty", i))
		}
	}
	for i, s := range cfg.Credentials.SSH {
		if s.User == "" {
			errs = append(errs, fmt.Sprintf("credentials.ssh[%d].user must not be empty", i))
		}
		if s.Secret.Name == "" && s.KeyFile == "" {
			errs = append(errs, fmt.Sprintf("credentials.ssh[%d] must set secret.name or key_file", i))
		}
	}
	for i, c := range cfg.Credentials.SNMPv2cCommunities {
		if c.Name == "" {
			errs = append(errs, fmt.Sprintf("credentials.snmp_v2c_communities[%d].name must not be empty", i))
		}
	}
	for i, v3 := range cfg.Credentials.SNMPv3 {
		if v3.User == "" {
			errs = append(errs, fmt.Sprintf("credentials.snmp_v3[%d].user must not be empty", i))
		}
		if v3.AuthProto != "" && !isValidEnum(v3.AuthProto, ValidSNMPAuthProtos) {
			errs = append(errs, fmt.Sprintf("credentials.snmp_v3[%d].auth_proto must be one of %v, got %q", i, ValidSNMPAuthProtos, v3.AuthProto))
		}
		if v3.PrivProto != "" && !isValidEnum(v3.PrivProto, ValidSNMPPrivProtos) {
			errs = append(errs, fmt.Sprintf("credentials.snmp_v3[%d].priv_proto must be one of %v, got %q", i, ValidSNMPPrivProtos, v3.PrivProto))
		}
		if v3.Port < 0 || v3.Port > 65535 {
			errs = append(errs, fmt.Sprintf("credentials.snmp_v3[%d].port must be between 0 and 65535, got %d", i, v3.Port))
		}
	}

	// Pool size validation
	if cfg.PoolSizes.Liveness < 1 {
		errs = append(errs, fmt.Sprintf("pool_sizes.liveness must be at least 1, got %d", cfg.PoolSizes.Liveness))
	}
	if cfg.PoolSizes.Classify < 1 {
		errs = append(errs, fmt.Sprintf("pool_sizes.classify must be at least 1, got %d", cfg.PoolSizes.Classify))
	}
	if cfg.PoolSizes.Collect < 1 {
		errs = append(errs, fmt.Sprintf("pool_sizes.collect must be at least 1, got %d", cfg.PoolSizes.Collect))
	}

	// Timeout validation
	if cfg.Timeouts.ICMPMs < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.icmp_ms must be positive, got %d", cfg.Timeouts.ICMPMs))
	}
	if cfg.Timeouts.TCPProbeMs < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.tcp_probe_ms must be positive, got %d", cfg.Timeouts.TCPProbeMs))
	}
	if cfg.Timeouts.PortScanMs < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.port_scan_ms must be positive, got %d", cfg.Timeouts.PortScanMs))
	}
	if cfg.Timeouts.ClassifyTotalMs < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.classify_total_ms must be positive, got %d", cfg.Timeouts.ClassifyTotalMs))
	}
	if cfg.Timeouts.WMISec < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.wmi_sec must be positive, got %d", cfg.Timeouts.WMISec))
	}
	if cfg.Timeouts.SSHConnectSec < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.ssh_connect_sec must be positive, got %d", cfg.Timeouts.SSHConnectSec))
	}
	if cfg.Timeouts.SSHCommandSec < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.ssh_command_sec must be positive, got %d", cfg.Timeouts.SSHCommandSec))
	}
	if cfg.Timeouts.SSHSessionSec < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.ssh_session_sec must be positive, got %d", cfg.Timeouts.SSHSessionSec))
	}
	if cfg.Timeouts.SNMPMs < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.snmp_ms must be positive, got %d", cfg.Timeouts.SNMPMs))
	}
	if cfg.Timeouts.SNMPRetries < 0 {
		errs = append(errs, fmt.Sprintf("timeouts.snmp_retries must be non-negative, got %d", cfg.Timeouts.SNMPRetries))
	}
	if cfg.Timeouts.HTTPProbeMs < 1 {
		errs = append(errs, fmt.Sprintf("timeouts.http_probe_ms must be positive, got %d", cfg.Timeouts.HTTPProbeMs))
	}

	if cfg.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("max_retries must be non-negative, got %d", cfg.MaxRetries))
	}

	// Store validation
	if cfg.Store.Path == "" {
		errs = append(errs, "store.path must not be empty")
	}
	if cfg.Store.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("store.retention_days must be at least 1, got %d", cfg.Store.RetentionDays))
	}

	// Logging validation
	if !isValidEnum(cfg.Logging.Level, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("logging.level must be one of %v, got %q", ValidLogLevels, cfg.Logging.Level))
	}

	// Tracing validation
	if cfg.Tracing.Enabled {
		validExporters := []string{"stdout", "otlp-grpc", "otlp-http"}
		if !isValidEnum(cfg.Tracing.Exporter, validExporters) {
			errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %v, got %q", validExporters, cfg.Tracing.Exporter))
		}
		if cfg.Tracing.ServiceName == "" {
			errs = append(errs, "tracing.service_name must not be empty when tracing is enabled")
		}
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %f", cfg.Tracing.SampleRate))
	}

	// Cache validation
	if cfg.Cache.ClassifySize < 0 {
		errs = append(errs, fmt.Sprintf("cache.classify_size must be non-negative, got %d", cfg.Cache.ClassifySize))
	}
	if cfg.Cache.ClassifyTTLSeconds < 0 {
		errs = append(errs, fmt.Sprintf("cache.classify_ttl_seconds must be non-negative, got %d", cfg.Cache.ClassifyTTLSeconds))
	}

	// Status server validation
	if cfg.StatusServer.Enabled && (cfg.StatusServer.Port < 1 || cfg.StatusServer.Port > 65535) {
		errs = append(errs, fmt.Sprintf("status_server.port must be between 1 and 65535, got %d", cfg.StatusServer.Port))
	}

	// Scan budget validation
	if cfg.ScanBudget.Enabled && cfg.ScanBudget.DailyLimit < 1 {
		errs = append(errs, fmt.Sprintf("scan_budget.daily_limit must be at least 1 when scan_budget is enabled, got %d", cfg.ScanBudget.DailyLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
