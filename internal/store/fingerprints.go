package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/netdiscover/internal/pipeline"
	"github.com/fieldops/netdiscover/internal/reconcile"
	"github.com/google/uuid"
)

// FindCandidates implements reconcile.Gateway. It looks up assets sharing
// the fingerprint, serial number, primary MAC, or hostname+ip pair with a
// newly collected record, mirroring the match inputs of §4.9.
func (s *Store) FindCandidates(ctx context.Context, fingerprint, serial, mac, hostname, ip string) ([]reconcile.Asset, error) {
	seen := map[string]reconcile.Asset{}

	add := func(rows *sql.Rows, err error) error {
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAssetRow(rows)
			if err != nil {
				return err
			}
			seen[a.ID] = a
		}
		return rows.Err()
	}

	if fingerprint != "" {
		rows, err := s.reader.QueryContext(ctx, assetSelectCols+" WHERE fingerprint = ? AND archived = 0", fingerprint)
		if err := add(rows, err); err != nil {
			return nil, fmt.Errorf("store: find by fingerprint: %w", err)
		}
	}
	if serial != "" {
		rows, err := s.reader.QueryContext(ctx, assetSelectCols+" WHERE serial_number = ? AND archived = 0", serial)
		if err := add(rows, err); err != nil {
			return nil, fmt.Errorf("store: find by serial: %w", err)
		}
	}
	if mac != "" {
		rows, err := s.reader.QueryContext(ctx, assetSelectCols+" WHERE (','||mac_addresses||',') LIKE ? AND archived = 0", "%,"+mac+",%")
		if err := add(rows, err); err != nil {
			return nil, fmt.Errorf("store: find by mac: %w", err)
		}
	}
	if hostname != "" && ip != "" {
		rows, err := s.reader.QueryContext(ctx, assetSelectCols+" WHERE hostname = ? AND ip_address = ? AND archived = 0", hostname, ip)
		if err := add(rows, err); err != nil {
			return nil, fmt.Errorf("store: find by hostname+ip: %w", err)
		}
	}

	out := make([]reconcile.Asset, 0, len(seen))
	for _, a := range seen {
		out = append(out, a)
	}
	return out, nil
}

// InsertAsset implements reconcile.Gateway.
func (s *Store) InsertAsset(ctx context.Context, record pipeline.AssetRecord) (string, error) {
	id := newAssetID()
	_, err := s.writer.ExecContext(ctx, assetInsertSQL, assetInsertArgs(id, record)...)
	if err != nil {
		return "", fmt.Errorf("store: insert asset: %w", err)
	}
	return id, nil
}

// UpdateAsset implements reconcile.Gateway.
func (s *Store) UpdateAsset(ctx context.Context, id string, record pipeline.AssetRecord) error {
	args := append(assetInsertArgs(id, record)[1:], id)
	_, err := s.writer.ExecContext(ctx, assetUpdateSQL, args...)
	if err != nil {
		return fmt.Errorf("store: update asset %s: %w", id, err)
	}
	return nil
}

// AppendHistory implements reconcile.Gateway, recording a JSON snapshot of
// the pre-merge record before it is overwritten.
func (s *Store) AppendHistory(ctx context.Context, id string, snapshot pipeline.AssetRecord) error {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("store: marshal history snapshot: %w", err)
	}
	_, err = s.writer.ExecContext(ctx,
		"INSERT INTO asset_history (asset_id, snapshot_json, recorded_at) VALUES (?, ?, ?)",
		id, string(blob), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: append history for %s: %w", id, err)
	}
	return nil
}

// LogResolution implements reconcile.Gateway.
func (s *Store) LogResolution(ctx context.Context, entry reconcile.ResolutionEntry) error {
	needsReview := 0
	if entry.NeedsReview {
		needsReview = 1
	}
	_, err := s.writer.ExecContext(ctx, `
		INSERT INTO duplicate_resolution_log (asset_id, kind, score, needs_review, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.AssetID, string(entry.Kind), entry.Score, needsReview, entry.Notes,
		entry.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: log resolution for %s: %w", entry.AssetID, err)
	}
	return nil
}

// ArchiveAsset implements reconcile.Gateway. Archiving is explicit-only:
// nothing in the pipeline calls this automatically on a missed scan.
func (s *Store) ArchiveAsset(ctx context.Context, id string, reason string) error {
	_, err := s.writer.ExecContext(ctx,
		"UPDATE assets SET archived = 1, archived_reason = ? WHERE id = ?", reason, id,
	)
	if err != nil {
		return fmt.Errorf("store: archive asset %s: %w", id, err)
	}
	return nil
}

const assetSelectCols = `SELECT
	id, fingerprint, ip_address, hostname, working_user, domain, device_type, device_infra,
	os_name, os_version, os_build, manufacturer, model, system_sku, serial_number, asset_tag,
	processor, cpu_cores, cpu_logical, installed_ram_gb, storage, active_gpu, connected_screens,
	mac_addresses, open_ports, collection_method, collection_timestamp, last_seen, first_seen,
	data_source, quality_score, validation_errors, errors
FROM assets`

const assetInsertSQL = `INSERT INTO assets (
	id, fingerprint, ip_address, hostname, working_user, domain, device_type, device_infra,
	os_name, os_version, os_build, manufacturer, model, system_sku, serial_number, asset_tag,
	processor, cpu_cores, cpu_logical, installed_ram_gb, storage, active_gpu, connected_screens,
	mac_addresses, open_ports, collection_method, collection_timestamp, last_seen, first_seen,
	data_source, quality_score, validation_errors, errors
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const assetUpdateSQL = `UPDATE assets SET
	fingerprint = ?, ip_address = ?, hostname = ?, working_user = ?, domain = ?, device_type = ?, device_infra = ?,
	os_name = ?, os_version = ?, os_build = ?, manufacturer = ?, model = ?, system_sku = ?, serial_number = ?, asset_tag = ?,
	processor = ?, cpu_cores = ?, cpu_logical = ?, installed_ram_gb = ?, storage = ?, active_gpu = ?, connected_screens = ?,
	mac_addresses = ?, open_ports = ?, collection_method = ?, collection_timestamp = ?, last_seen = ?, first_seen = ?,
	data_source = ?, quality_score = ?, validation_errors = ?, errors = ?
WHERE id = ?`

func assetInsertArgs(id string, r pipeline.AssetRecord) []any {
	return []any{
		id, r.Fingerprint, r.IPAddress, r.Hostname, r.WorkingUser, r.Domain, string(r.DeviceType), r.DeviceInfra,
		r.OSName, r.OSVersion, r.OSBuild, r.Manufacturer, r.Model, r.SystemSKU, r.SerialNumber, r.AssetTag,
		r.Processor, r.CPUCores, r.CPULogical, r.InstalledRAMGB, r.Storage, r.ActiveGPU, r.ConnectedScreens,
		strings.Join(r.MACAddresses, ","), joinInts(r.OpenPorts), string(r.CollectionMethod),
		formatTime(r.CollectionTimestamp), formatTime(r.LastSeen), formatTime(r.FirstSeen),
		r.DataSource, r.QualityScore, strings.Join(r.ValidationErrors, "|"), strings.Join(r.Errors, "|"),
	}
}

func scanAssetRow(rows *sql.Rows) (reconcile.Asset, error) {
	var (
		id, fingerprint, ip, hostname, user, domain, devType, devInfra                     string
		osName, osVersion, osBuild, manufacturer, model, sku, serial, assetTag              string
		processor, storage, gpu, screens, macs, ports, method, collTS, lastSeen, firstSeen  string
		dataSource, validationErrs, errs                                                    string
		cores, logical, ram, quality                                                        int
	)
	err := rows.Scan(
		&id, &fingerprint, &ip, &hostname, &user, &domain, &devType, &devInfra,
		&osName, &osVersion, &osBuild, &manufacturer, &model, &sku, &serial, &assetTag,
		&processor, &cores, &logical, &ram, &storage, &gpu, &screens,
		&macs, &ports, &method, &collTS, &lastSeen, &firstSeen,
		&dataSource, &quality, &validationErrs, &errs,
	)
	if err != nil {
		return reconcile.Asset{}, err
	}

	r := pipeline.AssetRecord{
		Fingerprint: fingerprint, IPAddress: ip, Hostname: hostname, WorkingUser: user, Domain: domain,
		DeviceType: pipeline.DeviceType(devType), DeviceInfra: devInfra,
		OSName: osName, OSVersion: osVersion, OSBuild: osBuild,
		Manufacturer: manufacturer, Model: model, SystemSKU: sku, SerialNumber: serial, AssetTag: assetTag,
		Processor: processor, CPUCores: cores, CPULogical: logical, InstalledRAMGB: ram,
		Storage: storage, ActiveGPU: gpu, ConnectedScreens: screens,
		CollectionMethod: pipeline.CollectorMethod(method),
		DataSource:       dataSource, QualityScore: quality,
	}
	if macs != "" {
		r.MACAddresses = strings.Split(macs, ",")
	}
	if ports != "" {
		for _, p := range strings.Split(ports, ",") {
			if n, err := strconv.Atoi(p); err == nil {
				r.OpenPorts = append(r.OpenPorts, n)
			}
		}
	}
	if validationErrs != "" {
		r.ValidationErrors = strings.Split(validationErrs, "|")
	}
	if errs != "" {
		r.Errors = strings.Split(errs, "|")
	}
	r.CollectionTimestamp = parseTime(collTS)
	r.LastSeen = parseTime(lastSeen)
	r.FirstSeen = parseTime(firstSeen)

	return reconcile.Asset{ID: id, Record: r}, nil
}

func joinInts(ints []int) string {
	parts := make([]string, len(ints))
	for i, n := range ints {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// newAssetID mints a UUIDv4 primary key for a new asset row.
func newAssetID() string {
	return uuid.NewString()
}
