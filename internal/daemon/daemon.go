package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fieldops/netdiscover/internal/cache"
	"github.com/fieldops/netdiscover/internal/classify"
	"github.com/fieldops/netdiscover/internal/collect/httpprobe"
	"github.com/fieldops/netdiscover/internal/collect/snmp"
	"github.com/fieldops/netdiscover/internal/collect/ssh"
	"github.com/fieldops/netdiscover/internal/collect/wmi"
	"github.com/fieldops/netdiscover/internal/config"
	"github.com/fieldops/netdiscover/internal/dispatch"
	"github.com/fieldops/netdiscover/internal/expand"
	"github.com/fieldops/netdiscover/internal/fingerprint"
	"github.com/fieldops/netdiscover/internal/liveness"
	"github.com/fieldops/netdiscover/internal/metrics"
	"github.com/fieldops/netdiscover/internal/normalize"
	"github.com/fieldops/netdiscover/internal/pipeline"
	"github.com/fieldops/netdiscover/internal/reconcile"
	"github.com/fieldops/netdiscover/internal/statusserver"
	"github.com/fieldops/netdiscover/internal/store"
	"github.com/fieldops/netdiscover/internal/tracing"
	"github.com/fieldops/netdiscover/internal/validate"
	"github.com/fieldops/netdiscover/internal/vault"
	"github.com/fieldops/netdiscover/internal/version"
)

// ErrStorageUnavailable and ErrAllTargetsUnreachable are sentinel errors
// an external CLI wrapper matches against (errors.Is) to pick the exit
// code of §6: 4 for the former, 3 for the latter. Every other non-nil
// error maps to a generic failure exit code at the wrapper's discretion.
var (
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrAllTargetsUnreachable = errors.New("all targets unreachable")
	ErrInvalidTargetConfig   = errors.New("invalid target configuration")
)

// Run executes exactly one scan-to-Done cycle: it expands cfg.Targets,
// drives the three pipeline stages, reconciles every collected record
// against the store, and returns once the run is complete or a shutdown
// signal interrupts it. It never loops internally; a resident deployment
// (see service.go) relies on the OS service manager to relaunch it.
func Run(cfg *config.Config, foreground bool) error {
	dataDir := dataDirFor(cfg)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	logFile, err := setupLogging(cfg, dataDir, foreground)
	if err != nil {
		return err
	}
	defer logFile.Close()

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("netdiscover starting")

	if IsRunning(dataDir) {
		return fmt.Errorf("netdiscover is already running (PID file exists at %s)", filepath.Join(dataDir, pidFilename))
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("%w: opening store: %v", ErrStorageUnavailable, err)
	}
	defer st.Close()
	log.Info().Str("db_path", cfg.Store.Path).Msg("store opened")

	collector := metrics.NewCollector()

	if err := WritePID(dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := RemovePID(dataDir); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	var tracingShutdown func(context.Context) error
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(context.Background(), cfg.Tracing.ServiceName, version.Version,
			cfg.Tracing.Exporter, cfg.Tracing.Endpoint, cfg.Tracing.SampleRate, cfg.Tracing.Insecure)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize tracing; continuing without it")
		} else {
			tracingShutdown = shutdown
		}
	}
	if tracingShutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracingShutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("tracing shutdown error")
			}
		}()
	}

	watcher := startConfigWatcher(dataDir)
	if watcher != nil {
		defer watcher.Close()
	}

	pruneCtx, pruneCancel := context.WithCancel(context.Background())
	defer pruneCancel()
	prunerDone := make(chan struct{})
	go func() {
		defer close(prunerDone)
		runPruner(pruneCtx, st, cfg.Store.RetentionDays)
	}()

	credPool := buildCredentialPool(cfg)
	classifyCache, err := cache.NewClassifyCache(cfg.Cache.ClassifySize, cfg.Cache.ClassifyTTLSeconds)
	if err != nil {
		return fmt.Errorf("creating classify cache: %w", err)
	}

	collectors := map[pipeline.CollectorMethod]pipeline.Collector{
		pipeline.MethodWMI: wmi.New(),
		pipeline.MethodSSH: ssh.New(),
		pipeline.MethodSNMP: snmp.New(),
	}
	if cfg.UseHTTPProbe {
		collectors[pipeline.MethodHTTP] = httpprobe.New()
	}
	dispatcher := dispatch.New(collectors)
	reconciler := reconcile.New(st)

	chanSink := pipeline.NewChanSink(256)
	var statusSrv *statusserver.Server
	if cfg.StatusServer.Enabled {
		statusSrv = statusserver.New(collector, cfg.StatusServer)
		go func() {
			if err := statusSrv.Start(); err != nil {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
	}
	sink := fanoutSink(chanSink, statusSrv)

	// Drain chanSink so events are visible in the log even when the CLI
	// wrapper isn't consuming them itself.
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for evt := range chanSink.Events() {
			log.Debug().Str("kind", string(evt.Kind)).Str("ip", evt.IP).Msg("pipeline event")
		}
	}()

	runID := strconv.FormatInt(time.Now().UnixNano(), 10)
	run := &store.ScanRun{ID: runID, StartedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := st.InsertScanRun(run); err != nil {
		log.Warn().Err(err).Msg("failed to record scan run start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutdown signal received; cancelling run")
			cancel()
		case <-ctx.Done():
		}
	}()

	ctx, runSpan := tracing.StartRunSpan(ctx, runID)
	runErr := runScan(ctx, cfg, collectors, dispatcher, reconciler, classifyCache, collector, credPool, sink, st)
	runSpan.End()
	signal.Stop(sigCh)
	cancel()

	stats := collector.RunStats()
	sink.Emit(pipeline.Event{Kind: pipeline.EventDone, Stats: stats})

	run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	run.TargetsExpanded = int64(stats.Expanded)
	run.AliveCount = int64(stats.Alive)
	run.ClassifiedCount = int64(stats.Classified)
	run.CollectedCount = int64(stats.Collected)
	run.ReconciledCount = int64(stats.Reconciled)
	run.DroppedUnreachable = int64(stats.DroppedUnreachable)
	run.RetryCount = int64(stats.RetryCount)
	if runErr != nil {
		run.ExitCode = 1
	}
	if err := st.FinishScanRun(run); err != nil {
		log.Warn().Err(err).Msg("failed to record scan run finish")
	}

	log.Info().
		Int("expanded", stats.Expanded).
		Int("alive", stats.Alive).
		Int("classified", stats.Classified).
		Int("collected", stats.Collected).
		Int("reconciled", stats.Reconciled).
		Msg("scan run complete")

	chanSink.Close()
	<-eventsDone

	if statusSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := statusSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("status server shutdown error")
		}
		shutdownCancel()
	}

	pruneCancel()
	<-prunerDone

	if runErr != nil {
		return runErr
	}
	if stats.Expanded > 0 && stats.Alive == 0 {
		return ErrAllTargetsUnreachable
	}
	log.Info().Msg("netdiscover stopped")
	return nil
}

// Stop reads the PID file and sends SIGTERM to the running instance.
func Stop() error {
	dataDir := dataDirFor(config.Get())

	pid, err := ReadPID(dataDir)
	if err != nil {
		return fmt.Errorf("netdiscover does not appear to be running: %w", err)
	}

	if !isProcessAlive(pid) {
		if rmErr := RemovePID(dataDir); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("netdiscover is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", pid, err)
	}
	fmt.Printf("Sent SIGTERM to netdiscover (PID %d)\n", pid)

	for i := 0; i < 300; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessAlive(pid) {
			return nil
		}
	}
	return nil
}

// Status reports whether an instance is currently running.
func Status() error {
	dataDir := dataDirFor(config.Get())

	if !IsRunning(dataDir) {
		fmt.Println("netdiscover is not running")
		return nil
	}

	pid, _ := ReadPID(dataDir)
	fmt.Printf("netdiscover is running (PID %d)\n", pid)
	return nil
}

// runScan drives one complete pass of the three pipeline stages over
// cfg.Targets. It returns once every submitted endpoint has drained
// through liveness, classification, and collection/reconciliation.
func runScan(
	ctx context.Context,
	cfg *config.Config,
	collectors map[pipeline.CollectorMethod]pipeline.Collector,
	dispatcher *dispatch.Dispatcher,
	reconciler *reconcile.Reconciler,
	classifyCache *cache.ClassifyCache,
	collector *metrics.Collector,
	credPool dispatch.CredentialPool,
	sink pipeline.Sink,
	st *store.Store,
) error {
	targets, err := expand.Expand(cfg.Targets)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTargetConfig, err)
	}

	targets, err = enforceScanBudget(st, cfg, targets)
	if err != nil {
		return err
	}

	collector.RecordExpanded(int64(len(targets)))
	sink.Emit(pipeline.Event{Kind: pipeline.EventTargetExpanded})

	prober := liveness.New()
	classifier := classify.New()

	type classifyItem struct {
		ip           string
		hostnameHint string
	}
	type collectItem struct {
		ip    string
		class pipeline.Classification
	}

	collectPool := pipeline.NewPool(cfg.PoolSizes.Collect, config.PoolQueueCap(cfg.PoolSizes.Collect),
		func(ctx context.Context, item collectItem) {
			collectEndpoint(ctx, item.ip, item.class, dispatcher, reconciler, collector, credPool, sink, st)
		})

	classifyPool := pipeline.NewPool(cfg.PoolSizes.Classify, config.PoolQueueCap(cfg.PoolSizes.Classify),
		func(ctx context.Context, item classifyItem) {
			collector.IncrementActiveStage("classify")
			defer collector.DecrementActiveStage("classify")

			ep := pipeline.Endpoint{IP: item.ip}

			if cached, ok := classifyCache.Get(item.ip); ok {
				collector.RecordCacheHit()
				collector.RecordClassified()
				sink.Emit(pipeline.Event{Kind: pipeline.EventClassified, IP: item.ip, Class: cached.DeviceClass, Confidence: cached.Confidence})
				collectPool.Submit(ctx, collectItem{ip: item.ip, class: cached})
				return
			}
			collector.RecordCacheMiss()

			ctx, span := tracing.StartStageSpan(ctx, "classify", item.ip)
			start := time.Now()
			class := classifier.Classify(ctx, ep, item.hostnameHint)
			collector.ObserveStageLatency("classify", time.Since(start).Seconds())
			span.End()

			collector.RecordClassified()
			classifyCache.Set(item.ip, class)
			tracing.SetEndpointAttributes(ctx, item.ip, string(class.DeviceClass), class.Confidence)
			sink.Emit(pipeline.Event{Kind: pipeline.EventClassified, IP: item.ip, Class: class.DeviceClass, Confidence: class.Confidence})
			collectPool.Submit(ctx, collectItem{ip: item.ip, class: class})
		})

	livenessPool := pipeline.NewPool(cfg.PoolSizes.Liveness, config.PoolQueueCap(cfg.PoolSizes.Liveness),
		func(ctx context.Context, ip string) {
			collector.IncrementActive()
			collector.IncrementActiveStage("liveness")
			defer collector.DecrementActiveStage("liveness")

			ep := pipeline.Endpoint{IP: ip}

			ctx, span := tracing.StartStageSpan(ctx, "liveness", ip)
			start := time.Now()
			res := prober.Probe(ctx, ep)
			collector.ObserveStageLatency("liveness", time.Since(start).Seconds())
			span.End()

			if !res.Alive {
				collector.RecordDroppedUnreachable()
				collector.DecrementActive()
				return
			}
			collector.RecordAlive()
			sink.Emit(pipeline.Event{Kind: pipeline.EventAliveFound, IP: ip, Latency: res.LatencyMS})
			classifyPool.Submit(ctx, classifyItem{ip: ip, hostnameHint: res.Hostname})
		})

	collectPool.Start(ctx)
	classifyPool.Start(ctx)
	livenessPool.Start(ctx)

	for _, ip := range targets {
		if err := livenessPool.Submit(ctx, ip); err != nil {
			break
		}
	}
	livenessPool.Close()
	classifyPool.Close()
	collectPool.Close()

	return nil
}

// scanBudgetPeriod is "daily"; it's the only period scan_budget supports today.
const scanBudgetPeriod = "daily"

// enforceScanBudget trims targets to what's left of the day's scan_budget
// (if enabled) and records the scan against that budget. A config with
// scan_budget disabled or a zero daily_limit passes every target through
// unchanged.
func enforceScanBudget(st *store.Store, cfg *config.Config, targets []string) ([]string, error) {
	if !cfg.ScanBudget.Enabled || cfg.ScanBudget.DailyLimit <= 0 {
		return targets, nil
	}

	periodStart := time.Now().UTC().Format("2006-01-02")
	limit := int64(cfg.ScanBudget.DailyLimit)

	budget, err := st.GetScanBudget(scanBudgetPeriod, periodStart)
	scanned := int64(0)
	if err == nil {
		scanned = budget.EndpointsScanned
	}

	remaining := limit - scanned
	if remaining <= 0 {
		log.Warn().Int64("limit", limit).Int64("scanned", scanned).Msg("scan budget exhausted for today, skipping run")
		return nil, nil
	}

	allowed := targets
	if int64(len(targets)) > remaining {
		log.Warn().Int("requested", len(targets)).Int64("remaining", remaining).Msg("target list exceeds remaining scan budget, truncating")
		allowed = targets[:remaining]
	}

	if err := st.AddScanned(scanBudgetPeriod, periodStart, int64(len(allowed)), limit); err != nil {
		log.Warn().Err(err).Msg("failed to record scan budget usage")
	}

	return allowed, nil
}

// collectEndpoint runs Stage 3 for one classified endpoint: dispatch,
// normalize, validate, fingerprint, and reconcile.
func collectEndpoint(
	ctx context.Context,
	ip string,
	class pipeline.Classification,
	dispatcher *dispatch.Dispatcher,
	reconciler *reconcile.Reconciler,
	collector *metrics.Collector,
	credPool dispatch.CredentialPool,
	sink pipeline.Sink,
	st *store.Store,
) {
	collector.IncrementActiveStage("collect")
	defer collector.DecrementActiveStage("collect")
	defer collector.DecrementActive()

	ep := pipeline.Endpoint{IP: ip, OpenPorts: class.OpenPorts}
	sink.Emit(pipeline.Event{Kind: pipeline.EventCollectStarted, IP: ip, Class: class.DeviceClass})

	ctx, span := tracing.StartStageSpan(ctx, "collect", ip)
	defer span.End()

	start := time.Now()
	result := dispatcher.Dispatch(ctx, ep, class, credPool)
	collector.ObserveStageLatency("collect", time.Since(start).Seconds())
	for i := 0; i < result.Retries; i++ {
		collector.RecordRetry()
	}

	ok := result.Err == nil
	sink.Emit(pipeline.Event{Kind: pipeline.EventCollectFinished, IP: ip, Method: result.Method, OK: ok})

	if !ok {
		var ce *pipeline.CollectorError
		kind := pipeline.ErrUnreachable
		if errors.As(result.Err, &ce) {
			kind = ce.Kind
		}
		collector.RecordStageError("collect", kind)
		collector.RecordCollectorResult(result.Method, "failure")
		collector.RecordClassifiedButNotCollected()
		tracing.RecordError(ctx, result.Err)
		return
	}
	collector.RecordCollected()
	collector.RecordCollectorResult(result.Method, "success")

	record := buildAssetRecord(ip, result, class)

	outcome, err := reconciler.Reconcile(ctx, record)
	if err != nil {
		var ce *pipeline.CollectorError
		kind := pipeline.ErrStorageTransient
		if errors.As(err, &ce) {
			kind = ce.Kind
		}
		collector.RecordStageError("reconcile", kind)
		tracing.RecordError(ctx, err)
		return
	}

	collector.RecordReconciled()
	tracing.SetReconcileAttributes(ctx, outcome.AssetID, string(outcome.Action))
	sink.Emit(pipeline.Event{Kind: pipeline.EventReconciled, IP: ip, Action: string(outcome.Action), AssetID: outcome.AssetID})

	logFieldRedactions(st, outcome.AssetID, record.ValidationErrors)
}

// logFieldRedactions records one audit-log row per field the validator
// rejected and stripped before persistence. Best-effort: a logging
// failure never fails the scan.
func logFieldRedactions(st *store.Store, assetID string, validationErrors []string) {
	if assetID == "" {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, ve := range validationErrors {
		field, reason, found := strings.Cut(ve, ":")
		if !found {
			field, reason = "unknown", ve
		}
		entry := &store.RedactionLogEntry{
			AssetID:   assetID,
			Timestamp: now,
			FieldPath: strings.TrimSpace(field),
			Reason:    strings.TrimSpace(reason),
		}
		if err := st.LogRedaction(entry); err != nil {
			log.Warn().Err(err).Str("asset_id", assetID).Str("field", field).Msg("failed to log field redaction")
		}
	}
}

// buildAssetRecord folds a collector's raw result through normalization,
// validation, and fingerprinting into the canonical record shape.
func buildAssetRecord(ip string, result dispatch.Result, class pipeline.Classification) pipeline.AssetRecord {
	targetWasPrivate := normalize.IsPrivateTarget(ip)
	n := normalize.Normalize(result.Method, result.Raw, class.DeviceClass, targetWasPrivate)

	vr := &validate.Result{}
	now := time.Now().UTC()

	macs := make([]string, 0, len(n.MACAddresses))
	for _, m := range n.MACAddresses {
		if clean := validate.MAC(vr, m); clean != "" {
			macs = append(macs, clean)
		}
	}

	record := pipeline.AssetRecord{
		IPAddress:           validateIPOrFallback(vr, ip),
		Hostname:            validate.Hostname(vr, n.Hostname),
		WorkingUser:         n.WorkingUser,
		Domain:              n.Domain,
		DeviceType:          n.DeviceType,
		OSName:              n.OSName,
		OSVersion:           n.OSVersion,
		OSBuild:             n.OSBuild,
		Manufacturer:        n.Manufacturer,
		Model:               n.Model,
		SystemSKU:           n.SystemSKU,
		SerialNumber:        validate.Serial(vr, n.SerialNumber),
		Processor:           n.Processor,
		CPUCores:            validate.NonNegativeInt(vr, "cpu_cores", n.CPUCores),
		CPULogical:          validate.NonNegativeInt(vr, "cpu_logical", n.CPULogical),
		InstalledRAMGB:      validate.NonNegativeInt(vr, "installed_ram_gb", n.InstalledRAMGB),
		Storage:             n.Storage,
		ActiveGPU:           n.ActiveGPU,
		ConnectedScreens:    n.ConnectedScreens,
		MACAddresses:        macs,
		OpenPorts:           class.OpenPorts,
		CollectionMethod:    result.Method,
		CollectionTimestamp: now,
		LastSeen:            now,
		FirstSeen:           now,
		DataSource:          "scan",
		ValidationErrors:    vr.Errors,
	}
	record.Fingerprint = fingerprint.Compute(fingerprint.Input{
		AssetUUID:    n.AssetUUID,
		SerialNumber: record.SerialNumber,
		MACAddresses: record.MACAddresses,
		Hostname:     record.Hostname,
		IPAddress:    record.IPAddress,
		Manufacturer: record.Manufacturer,
		Model:        record.Model,
	})
	record.QualityScore = normalize.QualityScore(&record, 1) - len(vr.Errors)
	if record.QualityScore < 0 {
		record.QualityScore = 0
	}
	return record
}

// validateIPOrFallback validates ip, falling back to the unvalidated
// original on failure: the collector target address is already known-good
// (it passed liveness) and a malformed reverse-DNS artifact should not
// discard it.
func validateIPOrFallback(vr *validate.Result, ip string) string {
	if clean := validate.IPv4(vr, ip); clean != "" {
		return clean
	}
	return ip
}

// runPruner periodically prunes retained data from the store.
func runPruner(ctx context.Context, st *store.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Msg("data pruner: recovered from panic")
					}
				}()
				n, err := st.Prune(retentionDays)
				if err != nil {
					log.Error().Err(err).Msg("data pruning failed")
				} else if n > 0 {
					log.Info().Int64("rows", n).Int("retention_days", retentionDays).Msg("pruned old data")
				}
			}()
		}
	}
}

// buildCredentialPool resolves every configured credential reference
// through the vault and groups the results by collector family.
func buildCredentialPool(cfg *config.Config) dispatch.CredentialPool {
	v := vault.New()

	enableSecret := ""
	if cfg.EnableSecret.Name != "" {
		if s, err := v.ResolveName(cfg.EnableSecret.Name); err == nil {
			enableSecret = s
		} else {
			log.Warn().Err(err).Str("name", cfg.EnableSecret.Name).Msg("failed to resolve enable secret")
		}
	}

	var pool dispatch.CredentialPool

	for _, wc := range cfg.Credentials.Windows {
		secret, err := v.ResolveName(wc.Secret.Name)
		if err != nil {
			log.Warn().Err(err).Str("user", wc.User).Msg("failed to resolve Windows credential; skipping")
			continue
		}
		pool.Windows = append(pool.Windows, pipeline.Credential{Kind: pipeline.CredWindows, User: wc.User, Secret: secret})
	}

	for _, sc := range cfg.Credentials.SSH {
		secret := ""
		if sc.Secret.Name != "" {
			s, err := v.ResolveName(sc.Secret.Name)
			if err != nil {
				log.Warn().Err(err).Str("user", sc.User).Msg("failed to resolve SSH credential secret")
			} else {
				secret = s
			}
		}
		if sc.KeyFile != "" {
			if key, err := os.ReadFile(sc.KeyFile); err == nil {
				secret = string(key)
			} else {
				log.Warn().Err(err).Str("key_file", sc.KeyFile).Msg("failed to read SSH key file")
			}
		}
		if secret == "" {
			continue
		}
		pool.SSH = append(pool.SSH, pipeline.Credential{Kind: pipeline.CredSSH, User: sc.User, Secret: secret, EnableSecret: enableSecret})
	}

	for _, ref := range cfg.Credentials.SNMPv2cCommunities {
		community, err := v.ResolveName(ref.Name)
		if err != nil {
			log.Warn().Err(err).Str("name", ref.Name).Msg("failed to resolve SNMPv2c community")
			continue
		}
		pool.SNMP = append(pool.SNMP, pipeline.Credential{Kind: pipeline.CredSNMPv2c, Secret: community})
	}

	for _, v3 := range cfg.Credentials.SNMPv3 {
		authKey, err := v.ResolveName(v3.AuthKey.Name)
		if err != nil {
			log.Warn().Err(err).Str("user", v3.User).Msg("failed to resolve SNMPv3 auth key; skipping")
			continue
		}
		privKey := ""
		if v3.PrivKey.Name != "" {
			if k, err := v.ResolveName(v3.PrivKey.Name); err == nil {
				privKey = k
			}
		}
		pool.SNMP = append(pool.SNMP, pipeline.Credential{
			Kind: pipeline.CredSNMPv3, User: v3.User, Secret: authKey + "|" + privKey,
			AuthProto: v3.AuthProto, PrivProto: v3.PrivProto, Port: v3.Port,
		})
	}

	return pool
}

// startConfigWatcher begins watching the active config file for changes,
// applying log-level changes on reload. Failures are logged and treated
// as non-fatal: the run proceeds without hot-reload.
func startConfigWatcher(dataDir string) *config.Watcher {
	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = filepath.Join(dataDir, config.DefaultConfigFilename)
	}
	if _, err := os.Stat(configFile); err != nil {
		return nil
	}

	w, err := config.Watch(configFile)
	if err != nil {
		log.Warn().Err(err).Msg("failed to start config watcher; continuing without hot-reload")
		return nil
	}
	w.OnChange(func(old, newCfg *config.Config) {
		log.Info().Msg("configuration reloaded")
		zerolog.SetGlobalLevel(parseLogLevel(newCfg.Logging.Level))
	})
	log.Info().Str("file", configFile).Msg("config watcher started")
	return w
}

// setupLogging configures the global zerolog logger to write to the
// configured log file, plus stdout with console formatting when running
// in the foreground.
func setupLogging(cfg *config.Config, dataDir string, foreground bool) (io.Closer, error) {
	zerolog.SetGlobalLevel(parseLogLevel(cfg.Logging.Level))

	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = filepath.Join(dataDir, "netdiscover.log")
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", logPath, err)
	}

	writers := []io.Writer{logFile}
	if foreground || cfg.Logging.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "netdiscover").Logger()
	return logFile, nil
}

// parseLogLevel converts a string log level to a zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// dataDirFor derives the directory holding the PID file, default log
// file, and default config file from the store path, falling back to
// ~/.discovery when no store path is configured.
func dataDirFor(cfg *config.Config) string {
	if cfg.Store.Path != "" {
		return filepath.Dir(cfg.Store.Path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".discovery"
	}
	return filepath.Join(home, ".discovery")
}

// multiSink fans a single Emit call out to every wrapped Sink.
type multiSink struct {
	sinks []pipeline.Sink
}

func (m multiSink) Emit(e pipeline.Event) {
	for _, s := range m.sinks {
		s.Emit(e)
	}
}

// fanoutSink combines chanSink with an optional status server sink,
// omitting nil entries.
func fanoutSink(chanSink *pipeline.ChanSink, statusSrv *statusserver.Server) pipeline.Sink {
	sinks := []pipeline.Sink{chanSink}
	if statusSrv != nil {
		sinks = append(sinks, statusSrv)
	}
	return multiSink{sinks: sinks}
}

