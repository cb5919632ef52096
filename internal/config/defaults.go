package config

// DefaultConfigFilename is the name of the config file searched for in
// "." and "~/.discovery".
const DefaultConfigFilename = "discovery.toml"

// Pool size defaults, per §4.5: liveness workers outnumber classify
// workers, which outnumber collect workers, since each stage does
// progressively more work per endpoint.
const (
	DefaultLivenessPoolSize = 100
	DefaultClassifyPoolSize = 20
	DefaultCollectPoolSize  = 15
)

// Timeout defaults, per §5.
const (
	DefaultICMPMs          = 800
	DefaultTCPProbeMs      = 500
	DefaultPortScanMs      = 2000
	DefaultClassifyTotalMs = 15000
	DefaultWMISec          = 30
	DefaultSSHConnectSec   = 8
	DefaultSSHCommandSec   = 8
	DefaultSSHSessionSec   = 60
	DefaultSNMPMs          = 2000
	DefaultSNMPRetries     = 1
	DefaultHTTPProbeMs     = 1200
)

const (
	DefaultMaxRetries          = 3
	DefaultStoreRetentionDays  = 90
	DefaultCacheClassifySize   = 4096
	DefaultCacheClassifyTTLSec = 300
	DefaultStatusServerPort    = 8090
)

// DefaultTracingExporter is the default tracing exporter type.
const DefaultTracingExporter = "stdout"

// DefaultTracingServiceName is the default service name for traces.
const DefaultTracingServiceName = "netdiscover"

// DefaultTracingSampleRate is the default sampling rate (1.0 = 100%).
const DefaultTracingSampleRate = 1.0

// DefaultLogLevel is the default zerolog level.
const DefaultLogLevel = "info"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.discovery"

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// ValidSNMPAuthProtos lists the allowed SNMPv3 auth protocols.
var ValidSNMPAuthProtos = []string{"MD5", "SHA"}

// ValidSNMPPrivProtos lists the allowed SNMPv3 privacy protocols.
var ValidSNMPPrivProtos = []string{"DES", "AES-128"}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Targets: []string{},
		Credentials: CredentialsConfig{
			Windows:            []WindowsCredentialConfig{},
			SSH:                []SSHCredentialConfig{},
			SNMPv2cCommunities: []CredentialRef{},
			SNMPv3:             []SNMPv3Config{},
		},
		EnableSecret: CredentialRef{},
		PoolSizes: PoolSizesConfig{
			Liveness: DefaultLivenessPoolSize,
			Classify: DefaultClassifyPoolSize,
			Collect:  DefaultCollectPoolSize,
		},
		Timeouts: TimeoutsConfig{
			ICMPMs:          DefaultICMPMs,
			TCPProbeMs:      DefaultTCPProbeMs,
			PortScanMs:      DefaultPortScanMs,
			ClassifyTotalMs: DefaultClassifyTotalMs,
			WMISec:          DefaultWMISec,
			SSHConnectSec:   DefaultSSHConnectSec,
			SSHCommandSec:   DefaultSSHCommandSec,
			SSHSessionSec:   DefaultSSHSessionSec,
			SNMPMs:          DefaultSNMPMs,
			SNMPRetries:     DefaultSNMPRetries,
			HTTPProbeMs:     DefaultHTTPProbeMs,
		},
		MaxRetries:   DefaultMaxRetries,
		UseHTTPProbe: false,
		Store: StoreConfig{
			Path:          "~/.discovery/discovery.db",
			RetentionDays: DefaultStoreRetentionDays,
		},
		Logging: LoggingConfig{
			Level:   DefaultLogLevel,
			File:    "",
			Console: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    DefaultTracingExporter,
			Endpoint:    "",
			ServiceName: DefaultTracingServiceName,
			SampleRate:  DefaultTracingSampleRate,
			Insecure:    true,
		},
		Cache: CacheConfig{
			ClassifySize:       DefaultCacheClassifySize,
			ClassifyTTLSeconds: DefaultCacheClassifyTTLSec,
		},
		StatusServer: StatusServerConfig{
			Enabled:     true,
			BindAddress: "127.0.0.1",
			Port:        DefaultStatusServerPort,
		},
		ScanBudget: ScanBudgetConfig{
			Enabled:    false,
			DailyLimit: 0,
		},
	}
}
