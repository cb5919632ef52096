// Package reconcile implements §4.9: matching a newly normalized record
// against stored assets, classifying the duplicate kind, and merging per
// the field-level policy table, serialized per fingerprint by a mutex map
// per §5's "same fingerprint" ordering guarantee.
package reconcile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// DuplicateKind is the closed classification set of §4.9/GLOSSARY.
type DuplicateKind string

const (
	KindExactMatch      DuplicateKind = "ExactMatch"
	KindUserTransfer    DuplicateKind = "UserTransfer"
	KindHardwareUpgrade DuplicateKind = "HardwareUpgrade"
	KindMacConflict     DuplicateKind = "MacConflict"
	KindHostnameOnly    DuplicateKind = "HostnameOnly"
	KindOther           DuplicateKind = "Other"
)

// Action is the reconciler's decision for a new record.
type Action string

const (
	ActionCreate Action = "Create"
	ActionUpdate Action = "Update"
	ActionFlag   Action = "Flag"
)

// Asset pairs a stored record with its persistence-layer identity.
type Asset struct {
	ID     string
	Record pipeline.AssetRecord
}

// Gateway is the Persistence Gateway interface of §6, consumed (not
// implemented) by the Reconciler.
type Gateway interface {
	FindCandidates(ctx context.Context, fingerprint, serial, mac, hostname, ip string) ([]Asset, error)
	InsertAsset(ctx context.Context, record pipeline.AssetRecord) (string, error)
	UpdateAsset(ctx context.Context, id string, record pipeline.AssetRecord) error
	AppendHistory(ctx context.Context, id string, snapshot pipeline.AssetRecord) error
	LogResolution(ctx context.Context, entry ResolutionEntry) error
	ArchiveAsset(ctx context.Context, id string, reason string) error
}

// ResolutionEntry is one Duplicate Resolution Log row. Credential-derived
// fields are never included, per the redaction decision documented
// against the source's unspecified duplicate-log sensitive-field
// handling.
type ResolutionEntry struct {
	AssetID     string
	Kind        DuplicateKind
	Score       float64
	NeedsReview bool
	Notes       string
	Timestamp   time.Time
}

// Outcome is the Reconciler's decision for one new record.
type Outcome struct {
	Action      Action
	AssetID     string
	Kind        DuplicateKind
	MergedIntoOK bool
}

// similarityWeights implements §4.9's identifier weight table.
const (
	weightPrimarySerial     = 0.40
	weightSecondarySerial   = 0.30
	weightPrimaryMAC        = 0.25
	weightMotherboardSerial = 0.20
	weightHostname          = 0.15
	weightIP                = 0.10

	exactMatchThreshold = 0.95
	flagThreshold        = 0.70
)

// Reconciler holds the fingerprint-scoped mutex map guaranteeing §5's
// "same fingerprint serialized" ordering.
type Reconciler struct {
	gw    Gateway
	locks sync.Map // fingerprint string -> *sync.Mutex
}

// New returns a Reconciler backed by gw.
func New(gw Gateway) *Reconciler {
	return &Reconciler{gw: gw}
}

func (r *Reconciler) lockFor(fingerprint string) *sync.Mutex {
	v, _ := r.locks.LoadOrStore(fingerprint, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Reconcile runs the full match-discovery -> classify -> merge -> persist
// critical section for one new record, serialized per fingerprint.
func (r *Reconciler) Reconcile(ctx context.Context, newRecord pipeline.AssetRecord) (Outcome, error) {
	mu := r.lockFor(newRecord.Fingerprint)
	mu.Lock()
	defer mu.Unlock()

	primaryMAC := ""
	if len(newRecord.MACAddresses) > 0 {
		primaryMAC = newRecord.MACAddresses[0]
	}

	candidates, err := r.gw.FindCandidates(ctx, newRecord.Fingerprint, newRecord.SerialNumber, primaryMAC, newRecord.Hostname, newRecord.IPAddress)
	if err != nil {
		return Outcome{}, &pipeline.CollectorError{Kind: pipeline.ErrStorageTransient, Detail: err.Error()}
	}

	if len(candidates) == 0 {
		id, err := r.gw.InsertAsset(ctx, newRecord)
		if err != nil {
			return Outcome{}, &pipeline.CollectorError{Kind: pipeline.ErrStorageTransient, Detail: err.Error()}
		}
		return Outcome{Action: ActionCreate, AssetID: id}, nil
	}

	best, bestScore := pickBestCandidate(candidates, newRecord)
	kind := classifyDuplicate(best.Record, newRecord, bestScore)

	switch kind {
	case KindMacConflict:
		if err := r.flag(ctx, best, newRecord, kind, bestScore, "primary MAC matches but serial number differs"); err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionFlag, AssetID: best.ID, Kind: kind}, nil

	case KindHostnameOnly:
		if err := r.flag(ctx, best, newRecord, kind, bestScore, "hostname/IP match only, below acceptable confidence"); err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionFlag, AssetID: best.ID, Kind: kind}, nil
	}

	merged := mergeRecords(best.Record, newRecord)
	if err := r.update(ctx, best, merged, kind, bestScore); err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: ActionUpdate, AssetID: best.ID, Kind: kind, MergedIntoOK: true}, nil
}

func (r *Reconciler) flag(ctx context.Context, existing Asset, newRecord pipeline.AssetRecord, kind DuplicateKind, score float64, notes string) error {
	if err := r.gw.LogResolution(ctx, ResolutionEntry{
		AssetID: existing.ID, Kind: kind, Score: score, NeedsReview: true, Notes: notes, Timestamp: newRecord.CollectionTimestamp,
	}); err != nil {
		return &pipeline.CollectorError{Kind: pipeline.ErrStorageTransient, Detail: err.Error()}
	}
	// Both assets are retained; the new record is inserted independently
	// so a human reviewer can see both (§4.9 "Flag(existing_id, new_record, reason)").
	if _, err := r.gw.InsertAsset(ctx, newRecord); err != nil {
		return &pipeline.CollectorError{Kind: pipeline.ErrStorageTransient, Detail: err.Error()}
	}
	return nil
}

func (r *Reconciler) update(ctx context.Context, existing Asset, merged pipeline.AssetRecord, kind DuplicateKind, score float64) error {
	if err := r.gw.AppendHistory(ctx, existing.ID, existing.Record); err != nil {
		return &pipeline.CollectorError{Kind: pipeline.ErrStorageTransient, Detail: err.Error()}
	}
	if err := r.gw.UpdateAsset(ctx, existing.ID, merged); err != nil {
		return &pipeline.CollectorError{Kind: pipeline.ErrStorageTransient, Detail: err.Error()}
	}
	notes := string(kind)
	if kind == KindUserTransfer {
		notes = "working_user changed: " + existing.Record.WorkingUser + " -> " + merged.WorkingUser
	}
	if err := r.gw.LogResolution(ctx, ResolutionEntry{
		AssetID: existing.ID, Kind: kind, Score: score, Notes: notes, Timestamp: merged.CollectionTimestamp,
	}); err != nil {
		return &pipeline.CollectorError{Kind: pipeline.ErrStorageTransient, Detail: err.Error()}
	}
	return nil
}

func pickBestCandidate(candidates []Asset, newRecord pipeline.AssetRecord) (Asset, float64) {
	best := candidates[0]
	bestScore := similarityScore(best.Record, newRecord)
	for _, c := range candidates[1:] {
		if s := similarityScore(c.Record, newRecord); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}

// similarityScore sums the weights of matching identifiers (§4.9 table).
// "secondary serial" and "motherboard serial" have no dedicated field in
// the canonical schema beyond SerialNumber; this implementation treats
// AssetTag as the secondary-serial slot when both records carry one,
// since it is the only other stable external identifier the schema
// exposes.
func similarityScore(existing, newRec pipeline.AssetRecord) float64 {
	score := 0.0

	if nonEmptyEqual(existing.SerialNumber, newRec.SerialNumber) {
		score += weightPrimarySerial
	}
	if nonEmptyEqual(existing.AssetTag, newRec.AssetTag) {
		score += weightSecondarySerial
	}
	if existingMAC(existing) != "" && existingMAC(existing) == existingMAC(newRec) {
		score += weightPrimaryMAC
	}
	if nonEmptyEqual(existing.SystemSKU, newRec.SystemSKU) {
		score += weightMotherboardSerial
	}
	if existing.Hostname != "" && strings.EqualFold(existing.Hostname, newRec.Hostname) {
		score += weightHostname
	}
	if existing.IPAddress == newRec.IPAddress && existing.IPAddress != "" {
		score += weightIP
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func existingMAC(r pipeline.AssetRecord) string {
	if len(r.MACAddresses) > 0 {
		return r.MACAddresses[0]
	}
	return ""
}

func nonEmptyEqual(a, b string) bool {
	return a != "" && b != "" && a == b
}

// classifyDuplicate applies §4.9's first-matching-rule priority order.
func classifyDuplicate(existing, newRec pipeline.AssetRecord, score float64) DuplicateKind {
	sameSerial := nonEmptyEqual(existing.SerialNumber, newRec.SerialNumber)
	sameMobo := nonEmptyEqual(existing.SystemSKU, newRec.SystemSKU)
	sameMAC := existingMAC(existing) != "" && existingMAC(existing) == existingMAC(newRec)

	if score >= exactMatchThreshold && recordsFullyMatch(existing, newRec) {
		return KindExactMatch
	}
	if sameSerial && existing.WorkingUser != "" && newRec.WorkingUser != "" && existing.WorkingUser != newRec.WorkingUser {
		return KindUserTransfer
	}
	if (sameSerial || sameMobo) && hardwareChangedMaterially(existing, newRec) {
		return KindHardwareUpgrade
	}
	if sameMAC && existing.SerialNumber != "" && newRec.SerialNumber != "" && existing.SerialNumber != newRec.SerialNumber {
		return KindMacConflict
	}
	hostnameOrIPOnly := (strings.EqualFold(existing.Hostname, newRec.Hostname) && existing.Hostname != "") ||
		(existing.IPAddress == newRec.IPAddress && existing.IPAddress != "")
	if hostnameOrIPOnly && !sameSerial && !sameMAC && score < flagThreshold {
		return KindHostnameOnly
	}
	return KindOther
}

func recordsFullyMatch(a, b pipeline.AssetRecord) bool {
	return nonEmptyEqual(a.SerialNumber, b.SerialNumber) &&
		a.Hostname == b.Hostname &&
		existingMAC(a) == existingMAC(b) &&
		a.Manufacturer == b.Manufacturer &&
		a.Model == b.Model
}

func hardwareChangedMaterially(existing, newRec pipeline.AssetRecord) bool {
	ramDiff := existing.InstalledRAMGB - newRec.InstalledRAMGB
	if ramDiff < 0 {
		ramDiff = -ramDiff
	}
	if ramDiff >= 1 {
		return true
	}
	if existing.Processor != "" && newRec.Processor != "" && existing.Processor != newRec.Processor {
		return true
	}
	return false
}

// mergeRecords applies the §4.9 field-level merge policy table.
func mergeRecords(existing, newRec pipeline.AssetRecord) pipeline.AssetRecord {
	merged := *existing.Clone()

	merged.SerialNumber = longerNonPlaceholderWins(existing.SerialNumber, newRec.SerialNumber)
	// asset_tag: existing wins unless new came from a manual source.
	if newRec.AssetTag != "" && newRec.DataSource == "manual" {
		merged.AssetTag = newRec.AssetTag
	}
	merged.Hostname = longerNonUnknownWins(existing.Hostname, newRec.Hostname)
	merged.IPAddress = latestWins(existing.IPAddress, newRec.IPAddress)

	merged.WorkingUser = latestWins(existing.WorkingUser, newRec.WorkingUser)
	merged.Domain = latestWins(existing.Domain, newRec.Domain)
	merged.DeviceType = latestDeviceTypeWins(existing.DeviceType, newRec.DeviceType)
	merged.DeviceInfra = latestWins(existing.DeviceInfra, newRec.DeviceInfra)
	merged.OSName = latestWins(existing.OSName, newRec.OSName)
	merged.OSVersion = latestWins(existing.OSVersion, newRec.OSVersion)
	merged.OSBuild = latestWins(existing.OSBuild, newRec.OSBuild)
	merged.Manufacturer = latestWins(existing.Manufacturer, newRec.Manufacturer)
	merged.Model = latestWins(existing.Model, newRec.Model)
	merged.SystemSKU = latestWins(existing.SystemSKU, newRec.SystemSKU)
	merged.Processor = latestWins(existing.Processor, newRec.Processor)
	merged.Storage = latestWins(existing.Storage, newRec.Storage)
	merged.ActiveGPU = latestWins(existing.ActiveGPU, newRec.ActiveGPU)
	merged.ConnectedScreens = latestWins(existing.ConnectedScreens, newRec.ConnectedScreens)

	if newRec.CPUCores > 0 {
		merged.CPUCores = newRec.CPUCores
	}
	if newRec.CPULogical > 0 {
		merged.CPULogical = newRec.CPULogical
	}
	if newRec.InstalledRAMGB > 0 {
		merged.InstalledRAMGB = newRec.InstalledRAMGB
	}
	if len(newRec.MACAddresses) > 0 {
		merged.MACAddresses = newRec.MACAddresses
	}
	if len(newRec.OpenPorts) > 0 {
		merged.OpenPorts = newRec.OpenPorts
	}

	merged.CollectionMethod = newRec.CollectionMethod
	merged.CollectionTimestamp = newRec.CollectionTimestamp
	merged.LastSeen = newRec.CollectionTimestamp
	merged.QualityScore = newRec.QualityScore
	merged.Fingerprint = existing.Fingerprint // identity never changes on merge
	merged.ValidationErrors = newRec.ValidationErrors
	merged.Errors = newRec.Errors

	return merged
}

func longerNonPlaceholderWins(existing, newVal string) string {
	if newVal == "" {
		return existing
	}
	if existing == "" {
		return newVal
	}
	if len(newVal) < len(existing) {
		return existing
	}
	return newVal // longer wins; equal length goes to the newer value
}

func longerNonUnknownWins(existing, newVal string) string {
	if strings.EqualFold(newVal, "unknown") || newVal == "" {
		return existing
	}
	if strings.EqualFold(existing, "unknown") || existing == "" {
		return newVal
	}
	if len(newVal) > len(existing) {
		return newVal
	}
	return existing
}

func latestWins(existing, newVal string) string {
	if newVal == "" {
		return existing
	}
	return newVal
}

func latestDeviceTypeWins(existing, newVal pipeline.DeviceType) pipeline.DeviceType {
	if newVal == "" || newVal == pipeline.DeviceUnknown {
		return existing
	}
	return newVal
}
