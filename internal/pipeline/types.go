// Package pipeline holds the types shared by every stage of the discovery
// pipeline: the endpoint/classification/record shapes, the credential and
// error taxonomies, and the progress-event stream consumers read from.
package pipeline

import (
	"context"
	"time"
)

// DeviceType is the closed set of asset device classifications (§3).
type DeviceType string

const (
	DeviceWorkstation      DeviceType = "workstation"
	DeviceLaptop           DeviceType = "laptop"
	DeviceWindowsServer    DeviceType = "windows_server"
	DeviceLinuxServer      DeviceType = "linux_server"
	DeviceFirewall         DeviceType = "firewall"
	DeviceSwitch           DeviceType = "switch"
	DeviceAccessPoint      DeviceType = "access_point"
	DeviceHypervisor       DeviceType = "hypervisor"
	DevicePrinter          DeviceType = "printer"
	DeviceFingerprintRdr   DeviceType = "fingerprint_reader"
	DeviceUnknown          DeviceType = "unknown"
)

// CredentialKind tags a Credential with the collector family it applies to.
type CredentialKind string

const (
	CredWindows CredentialKind = "windows"
	CredSSH     CredentialKind = "ssh"
	CredSNMPv2c CredentialKind = "snmp_v2c"
	CredSNMPv3  CredentialKind = "snmp_v3"
	CredNone    CredentialKind = "none"
)

// Credential is opaque to the dispatcher except for its Kind; the fields
// beyond User/Secret are collector-specific (SNMPv3 auth/priv parameters).
type Credential struct {
	Kind        CredentialKind
	User        string
	Secret      string // password, private key PEM, or community string
	EnableSecret string // Cisco "enable" password, SSH collector only

	// SNMPv3-only fields.
	AuthProto string // "MD5" | "SHA"
	PrivProto string // "DES" | "AES-128"
	Port      int
}

// Endpoint is a single IPv4 address carried through the pipeline.
type Endpoint struct {
	IP        string
	OpenPorts []int // Stage 2's open ports, when known
}

// LivenessResult is Stage 1's output (§4.2).
type LivenessResult struct {
	Alive        bool
	LatencyMS    float64
	TTL          int
	Hostname     string
	OSFamilyHint string // "linux" | "windows" | ""
}

// Classification is Stage 2's output (§4.3).
type Classification struct {
	OSFamily    string
	DeviceClass DeviceType
	OpenPorts   []int
	Services    map[int]string // port -> banner
	Confidence  float64
}

// CollectResult is Stage 3's output: a raw, collector-shaped dict plus the
// collector kind that produced it. The dispatcher and normalizer are the
// only components that interpret its contents.
type CollectResult struct {
	Method CollectorMethod
	Raw    map[string]any
}

// CollectorMethod names which collector produced a CollectResult.
type CollectorMethod string

const (
	MethodWMI   CollectorMethod = "wmi"
	MethodSSH   CollectorMethod = "ssh"
	MethodSNMP  CollectorMethod = "snmp"
	MethodHTTP  CollectorMethod = "http"
)

// AssetRecord is the canonical record described in §3.
type AssetRecord struct {
	IPAddress      string
	Hostname       string
	WorkingUser    string
	Domain         string
	DeviceType     DeviceType
	DeviceInfra    string
	OSName         string
	OSVersion      string
	OSBuild        string
	Manufacturer   string
	Model          string
	SystemSKU      string
	SerialNumber   string
	AssetTag       string
	Processor      string
	CPUCores       int
	CPULogical     int
	InstalledRAMGB int
	Storage        string
	ActiveGPU      string
	ConnectedScreens string
	MACAddresses   []string
	OpenPorts      []int
	CollectionMethod    CollectorMethod
	CollectionTimestamp time.Time
	LastSeen            time.Time
	FirstSeen           time.Time
	DataSource          string
	QualityScore        int
	Fingerprint         string

	ValidationErrors []string
	Errors           []string
}

// Clone returns a deep-enough copy of r for safe independent mutation
// (used by the reconciler when building a merged record).
func (r *AssetRecord) Clone() *AssetRecord {
	cp := *r
	cp.MACAddresses = append([]string(nil), r.MACAddresses...)
	cp.OpenPorts = append([]int(nil), r.OpenPorts...)
	cp.ValidationErrors = append([]string(nil), r.ValidationErrors...)
	cp.Errors = append([]string(nil), r.Errors...)
	return &cp
}

// ErrorKind is the taxonomy of §7.
type ErrorKind string

const (
	ErrInvalidTarget      ErrorKind = "InvalidTarget"
	ErrUnreachable        ErrorKind = "Unreachable"
	ErrAuthFailed         ErrorKind = "AuthFailed"
	ErrTimeout            ErrorKind = "Timeout"
	ErrProtocolTransient  ErrorKind = "ProtocolError(transient)"
	ErrProtocolPermanent  ErrorKind = "ProtocolError(permanent)"
	ErrValidation         ErrorKind = "ValidationError"
	ErrStorageTransient   ErrorKind = "StorageError(transient)"
	ErrStoragePermanent   ErrorKind = "StorageError(permanent)"
	ErrCancelled          ErrorKind = "Cancelled"
)

// CollectorError is the typed error every collector returns instead of an
// ad hoc error string, so the dispatcher can apply §4.5's retry/rotation
// policy purely by inspecting Kind.
type CollectorError struct {
	Kind   ErrorKind
	Detail string
}

func (e *CollectorError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

// Retryable reports whether the dispatcher should retry the same collector
// (possibly with the next credential) per §4.5/§7.
func (e *CollectorError) Retryable() bool {
	switch e.Kind {
	case ErrTimeout, ErrUnreachable, ErrProtocolTransient, ErrStorageTransient:
		return true
	default:
		return false
	}
}

// Collector is the uniform capability every protocol collector implements
// (§4.4). Implementations must be idempotent and side-effect free on the
// endpoint, and must honor ctx cancellation/deadline.
type Collector interface {
	Method() CollectorMethod
	Collect(ctx context.Context, ep Endpoint, cred Credential) (map[string]any, error)
}

// EventKind enumerates the progress-stream variants of §6. Consumers must
// tolerate new kinds being added in the future.
type EventKind string

const (
	EventTargetExpanded  EventKind = "TargetExpanded"
	EventAliveFound      EventKind = "AliveFound"
	EventClassified      EventKind = "Classified"
	EventCollectStarted  EventKind = "CollectStarted"
	EventCollectFinished EventKind = "CollectFinished"
	EventReconciled      EventKind = "Reconciled"
	EventDone            EventKind = "Done"
)

// Event is a single progress-stream entry. Only the fields relevant to Kind
// are populated; the rest are zero.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	IP         string
	Latency    float64
	Class      DeviceType
	Confidence float64
	Method     CollectorMethod
	OK         bool
	Action     string
	AssetID    string

	Stats *RunStats
}

// RunStats is the final Done event's payload (§7 "User-visible behavior").
type RunStats struct {
	Expanded   int
	Alive      int
	Classified int
	Collected  int
	Reconciled int

	ClassifiedButNotCollected int
	DroppedUnreachable        int

	RetryCount int

	CollectorSuccess map[CollectorMethod]int
	CollectorFailure map[CollectorMethod]int

	StageLatencyP50MS map[string]float64
	StageLatencyP95MS map[string]float64
}

// Sink receives pipeline Events. Implementations must not block the
// pipeline for long; a buffered channel-backed Sink is provided in
// internal/pipeline/sink.go.
type Sink interface {
	Emit(Event)
}
