// Package config loads and hot-reloads the discovery engine's
// configuration: scan targets, collector credentials, pool sizing,
// timeouts, and the ambient logging/tracing/metrics/storage settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use.
// If no config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

// set stores a new Config atomically.
func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for the discovery engine.
type Config struct {
	Targets      []string           `mapstructure:"targets"       toml:"targets"`
	Credentials  CredentialsConfig  `mapstructure:"credentials"   toml:"credentials"`
	EnableSecret CredentialRef      `mapstructure:"enable_secret" toml:"enable_secret"`
	PoolSizes    PoolSizesConfig    `mapstructure:"pool_sizes"    toml:"pool_sizes"`
	Timeouts     TimeoutsConfig     `mapstructure:"timeouts"      toml:"timeouts"`
	MaxRetries   int                `mapstructure:"max_retries"   toml:"max_retries"`
	UseHTTPProbe bool               `mapstructure:"use_http_probe" toml:"use_http_probe"`
	Store        StoreConfig        `mapstructure:"store"         toml:"store"`
	Logging      LoggingConfig      `mapstructure:"logging"       toml:"logging"`
	Tracing      TracingConfig      `mapstructure:"tracing"       toml:"tracing"`
	Cache        CacheConfig        `mapstructure:"cache"         toml:"cache"`
	StatusServer StatusServerConfig `mapstructure:"status_server" toml:"status_server"`
	ScanBudget   ScanBudgetConfig   `mapstructure:"scan_budget"   toml:"scan_budget"`
}

// CredentialRef points at a secret held in internal/vault (OS keychain,
// falling back to a DISCOVERY_CRED_<NAME> environment variable) rather
// than carrying the secret inline.
type CredentialRef struct {
	Name string `mapstructure:"name" toml:"name"`
}

// WindowsCredentialConfig is a single WMI credential, tried in order.
type WindowsCredentialConfig struct {
	User   string        `mapstructure:"user"   toml:"user"`
	Secret CredentialRef `mapstructure:"secret" toml:"secret"`
}

// SSHCredentialConfig is a single SSH credential, tried in order. Exactly
// one of Secret (password) or KeyFile (private key path) is expected to
// resolve to a usable auth method; both may be set to offer both.
type SSHCredentialConfig struct {
	User    string        `mapstructure:"user"     toml:"user"`
	Secret  CredentialRef `mapstructure:"secret"   toml:"secret"`
	KeyFile string        `mapstructure:"key_file" toml:"key_file"`
}

// SNMPv3Config carries the credential-kind-specific fields §6 names for
// SNMPv3: a user plus auth/priv protocol and key references.
type SNMPv3Config struct {
	User      string        `mapstructure:"user"       toml:"user"`
	AuthProto string        `mapstructure:"auth_proto" toml:"auth_proto"` // "MD5" | "SHA"
	AuthKey   CredentialRef `mapstructure:"auth_key"   toml:"auth_key"`
	PrivProto string        `mapstructure:"priv_proto" toml:"priv_proto"` // "DES" | "AES-128"
	PrivKey   CredentialRef `mapstructure:"priv_key"   toml:"priv_key"`
	Port      int           `mapstructure:"port"       toml:"port"`
}

// CredentialsConfig groups every credential family the dispatcher may
// draw from, in try-order per family.
type CredentialsConfig struct {
	Windows            []WindowsCredentialConfig `mapstructure:"windows"              toml:"windows"`
	SSH                []SSHCredentialConfig      `mapstructure:"ssh"                  toml:"ssh"`
	SNMPv2cCommunities []CredentialRef            `mapstructure:"snmp_v2c_communities" toml:"snmp_v2c_communities"`
	SNMPv3             []SNMPv3Config             `mapstructure:"snmp_v3"              toml:"snmp_v3"`
}

// PoolSizesConfig sets worker counts for the three pipeline pools (§4.5).
type PoolSizesConfig struct {
	Liveness int `mapstructure:"liveness" toml:"liveness"`
	Classify int `mapstructure:"classify" toml:"classify"`
	Collect  int `mapstructure:"collect"  toml:"collect"`
}

// TimeoutsConfig overrides the §5 default timeouts. Every timeout must be
// positive: validation rejects a zero value instead of substituting the
// built-in default.
type TimeoutsConfig struct {
	ICMPMs         int `mapstructure:"icmp_ms"          toml:"icmp_ms"`
	TCPProbeMs     int `mapstructure:"tcp_probe_ms"     toml:"tcp_probe_ms"`
	PortScanMs     int `mapstructure:"port_scan_ms"     toml:"port_scan_ms"`
	ClassifyTotalMs int `mapstructure:"classify_total_ms" toml:"classify_total_ms"`
	WMISec         int `mapstructure:"wmi_sec"          toml:"wmi_sec"`
	SSHConnectSec  int `mapstructure:"ssh_connect_sec"  toml:"ssh_connect_sec"`
	SSHCommandSec  int `mapstructure:"ssh_command_sec"  toml:"ssh_command_sec"`
	SSHSessionSec  int `mapstructure:"ssh_session_sec"  toml:"ssh_session_sec"`
	SNMPMs         int `mapstructure:"snmp_ms"          toml:"snmp_ms"`
	SNMPRetries    int `mapstructure:"snmp_retries"     toml:"snmp_retries"`
	HTTPProbeMs    int `mapstructure:"http_probe_ms"    toml:"http_probe_ms"`
}

// StoreConfig configures the SQLite persistence gateway.
type StoreConfig struct {
	Path              string `mapstructure:"path"                toml:"path"`
	RetentionDays     int    `mapstructure:"retention_days"      toml:"retention_days"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level   string `mapstructure:"level"   toml:"level"`
	File    string `mapstructure:"file"    toml:"file"`
	Console bool   `mapstructure:"console" toml:"console"`
}

// TracingConfig controls OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"      toml:"enabled"`
	Exporter    string  `mapstructure:"exporter"     toml:"exporter"`     // "stdout", "otlp-grpc", "otlp-http"
	Endpoint    string  `mapstructure:"endpoint"     toml:"endpoint"`     // e.g. "localhost:4317"
	ServiceName string  `mapstructure:"service_name" toml:"service_name"` // defaults to "netdiscover"
	SampleRate  float64 `mapstructure:"sample_rate"  toml:"sample_rate"`  // 0.0 to 1.0
	Insecure    bool    `mapstructure:"insecure"     toml:"insecure"`     // skip TLS for dev
}

// CacheConfig controls the in-process classification cache.
type CacheConfig struct {
	ClassifySize       int `mapstructure:"classify_size"        toml:"classify_size"`
	ClassifyTTLSeconds int `mapstructure:"classify_ttl_seconds" toml:"classify_ttl_seconds"`
}

// StatusServerConfig controls the narrow /healthz + /metrics status
// surface — not the dashboard the distilled spec excludes as a Non-goal.
type StatusServerConfig struct {
	Enabled     bool   `mapstructure:"enabled"      toml:"enabled"`
	BindAddress string `mapstructure:"bind_address" toml:"bind_address"`
	Port        int    `mapstructure:"port"         toml:"port"`
}

// ScanBudgetConfig caps how many endpoints a single period may scan, so a
// misconfigured or auto-expanded Targets list cannot run away against a
// production network. A zero DailyLimit means unlimited.
type ScanBudgetConfig struct {
	Enabled    bool `mapstructure:"enabled"     toml:"enabled"`
	DailyLimit int  `mapstructure:"daily_limit" toml:"daily_limit"`
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (DISCOVERY_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty
//  3. ./discovery.toml
//  4. ~/.discovery/discovery.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	// Set all defaults from the default config so viper knows every key.
	setViperDefaults(v)

	// Environment variable overlay: DISCOVERY_MAX_RETRIES etc.
	v.SetEnvPrefix("DISCOVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Determine which file(s) to read.
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("discovery")
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".discovery"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file exists we still proceed with defaults + env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Store the resolved config file path.
	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Expand ~ in store path.
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Logging.File = expandHome(cfg.Logging.File)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// InitConfig writes the default configuration file to ~/.discovery/discovery.toml.
// If the file already exists it is not overwritten.
func InitConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".discovery")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	cfg := DefaultConfig()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}

// ExportConfig writes the current config to the given path in TOML format.
func ExportConfig(path string) error {
	cfg := Get()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ImportConfig reads a TOML config file over the built-in defaults (not over
// the current config), validates it, and replaces the current config with
// the result. The imported config is also persisted to the active config file so changes
// survive restarts.
func ImportConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}
	set(cfg)

	// Persist to the active config file so changes survive restart.
	if dest := ConfigFilePath(); dest != "" {
		out, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config for persistence: %w", err)
		}
		if err := os.WriteFile(dest, out, 0o600); err != nil {
			return fmt.Errorf("persisting imported config: %w", err)
		}
	}

	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so that env var binding
// works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("targets", d.Targets)

	v.SetDefault("enable_secret.name", d.EnableSecret.Name)

	v.SetDefault("pool_sizes.liveness", d.PoolSizes.Liveness)
	v.SetDefault("pool_sizes.classify", d.PoolSizes.Classify)
	v.SetDefault("pool_sizes.collect", d.PoolSizes.Collect)

	v.SetDefault("timeouts.icmp_ms", d.Timeouts.ICMPMs)
	v.SetDefault("timeouts.tcp_probe_ms", d.Timeouts.TCPProbeMs)
	v.SetDefault("timeouts.port_scan_ms", d.Timeouts.PortScanMs)
	v.SetDefault("timeouts.classify_total_ms", d.Timeouts.ClassifyTotalMs)
	v.SetDefault("timeouts.wmi_sec", d.Timeouts.WMISec)
	v.SetDefault("timeouts.ssh_connect_sec", d.Timeouts.SSHConnectSec)
	v.SetDefault("timeouts.ssh_command_sec", d.Timeouts.SSHCommandSec)
	v.SetDefault("timeouts.ssh_session_sec", d.Timeouts.SSHSessionSec)
	v.SetDefault("timeouts.snmp_ms", d.Timeouts.SNMPMs)
	v.SetDefault("timeouts.snmp_retries", d.Timeouts.SNMPRetries)
	v.SetDefault("timeouts.http_probe_ms", d.Timeouts.HTTPProbeMs)

	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("use_http_probe", d.UseHTTPProbe)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.retention_days", d.Store.RetentionDays)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.console", d.Logging.Console)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)

	v.SetDefault("cache.classify_size", d.Cache.ClassifySize)
	v.SetDefault("cache.classify_ttl_seconds", d.Cache.ClassifyTTLSeconds)

	v.SetDefault("status_server.enabled", d.StatusServer.Enabled)
	v.SetDefault("status_server.bind_address", d.StatusServer.BindAddress)
	v.SetDefault("status_server.port", d.StatusServer.Port)

	v.SetDefault("scan_budget.enabled", d.ScanBudget.Enabled)
	v.SetDefault("scan_budget.daily_limit", d.ScanBudget.DailyLimit)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// PoolQueueCap returns the bounded queue capacity for a pool of the given
// size, per §5's "queue capacity = pool size × 4" rule.
func PoolQueueCap(poolSize int) int {
	if poolSize <= 0 {
		return 4
	}
	return poolSize * 4
}

// Duration helpers convert the millisecond/second int fields into
// time.Duration at call sites that need it.
func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
func secDuration(s int) time.Duration { return time.Duration(s) * time.Second }

// ICMPTimeout, TCPProbeTimeout, etc. expose TimeoutsConfig as Durations.
func (t TimeoutsConfig) ICMPTimeout() time.Duration         { return msDuration(t.ICMPMs) }
func (t TimeoutsConfig) TCPProbeTimeout() time.Duration     { return msDuration(t.TCPProbeMs) }
func (t TimeoutsConfig) PortScanTimeout() time.Duration     { return msDuration(t.PortScanMs) }
func (t TimeoutsConfig) ClassifyTotalTimeout() time.Duration { return msDuration(t.ClassifyTotalMs) }
func (t TimeoutsConfig) WMITimeout() time.Duration          { return secDuration(t.WMISec) }
func (t TimeoutsConfig) SSHConnectTimeout() time.Duration   { return secDuration(t.SSHConnectSec) }
func (t TimeoutsConfig) SSHCommandTimeout() time.Duration   { return secDuration(t.SSHCommandSec) }
func (t TimeoutsConfig) SSHSessionTimeout() time.Duration   { return secDuration(t.SSHSessionSec) }
func (t TimeoutsConfig) SNMPTimeout() time.Duration         { return msDuration(t.SNMPMs) }
func (t TimeoutsConfig) HTTPProbeTimeout() time.Duration    { return msDuration(t.HTTPProbeMs) }
