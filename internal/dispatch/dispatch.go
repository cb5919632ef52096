// Package dispatch implements Stage 3's driver (§4.5): for a classified
// endpoint, it picks the per-class collector sequence, rotates credentials
// on AuthFailed, and retries recoverable errors with jittered backoff.
package dispatch

import (
	"context"

	"github.com/fieldops/netdiscover/internal/pipeline"
	"github.com/fieldops/netdiscover/internal/tracing"
)

// CredentialPool groups the available credentials by kind.
type CredentialPool struct {
	Windows []pipeline.Credential
	SSH     []pipeline.Credential
	SNMP    []pipeline.Credential // v2c and v3 entries, tried in order
}

// Dispatcher picks and runs the collector sequence for a classified
// endpoint.
type Dispatcher struct {
	Collectors map[pipeline.CollectorMethod]pipeline.Collector
	Breakers   *CircuitBreakerRegistry
	Retry      RetryConfig
}

// New returns a Dispatcher wired with the given collector set. Missing
// entries in collectors are treated as "collector unavailable" and skipped
// over in the sequence.
func New(collectors map[pipeline.CollectorMethod]pipeline.Collector) *Dispatcher {
	return &Dispatcher{
		Collectors: collectors,
		Breakers:   NewCircuitBreakerRegistry(5, 30_000_000_000, 2), // 30s reset
		Retry:      DefaultRetryConfig,
	}
}

// sequenceFor returns the per-class collector order of §4.5's table.
func sequenceFor(class pipeline.DeviceType, openPorts []int) []pipeline.CollectorMethod {
	has161 := containsPort(openPorts, 161)
	has22 := containsPort(openPorts, 22)

	switch class {
	case pipeline.DeviceWorkstation, pipeline.DeviceLaptop, pipeline.DeviceWindowsServer:
		seq := []pipeline.CollectorMethod{pipeline.MethodWMI}
		if has161 {
			seq = append(seq, pipeline.MethodSNMP)
		}
		return append(seq, pipeline.MethodHTTP)

	case pipeline.DeviceLinuxServer, pipeline.DeviceHypervisor:
		return []pipeline.CollectorMethod{pipeline.MethodSSH, pipeline.MethodSNMP, pipeline.MethodHTTP}

	case pipeline.DeviceFirewall, pipeline.DeviceSwitch, pipeline.DeviceAccessPoint:
		return []pipeline.CollectorMethod{pipeline.MethodSSH, pipeline.MethodSNMP, pipeline.MethodHTTP}

	case pipeline.DevicePrinter, pipeline.DeviceFingerprintRdr:
		return []pipeline.CollectorMethod{pipeline.MethodSNMP, pipeline.MethodHTTP, pipeline.MethodSSH}

	default: // unknown
		var seq []pipeline.CollectorMethod
		if has22 {
			seq = append(seq, pipeline.MethodSSH)
		}
		if has161 {
			seq = append(seq, pipeline.MethodSNMP)
		}
		return append(seq, pipeline.MethodHTTP)
	}
}

func containsPort(ports []int, p int) bool {
	for _, x := range ports {
		if x == p {
			return true
		}
	}
	return false
}

// credentialsFor picks the rotation list for a collector method.
func credentialsFor(method pipeline.CollectorMethod, pool CredentialPool) []pipeline.Credential {
	switch method {
	case pipeline.MethodWMI:
		return pool.Windows
	case pipeline.MethodSSH:
		return pool.SSH
	case pipeline.MethodSNMP:
		return pool.SNMP
	default: // HTTP probe carries no credential
		return []pipeline.Credential{{Kind: pipeline.CredNone}}
	}
}

// Result is the outcome of dispatching one endpoint.
type Result struct {
	Method  pipeline.CollectorMethod
	Raw     map[string]any
	Err     error // last error if every collector in the sequence failed
	Retries int
}

// Dispatch runs the collector sequence for the given classification and
// returns the first Ok result, or the last error if every collector in
// the sequence exhausted its retries and credentials.
func (d *Dispatcher) Dispatch(ctx context.Context, ep pipeline.Endpoint, class pipeline.Classification, pool CredentialPool) Result {
	breaker := d.Breakers.Get(ep.IP)
	if !breaker.Allow() {
		return Result{Err: &pipeline.CollectorError{Kind: pipeline.ErrUnreachable, Detail: "circuit open for endpoint"}}
	}

	var lastErr error
	totalRetries := 0

	for _, method := range sequenceFor(class.DeviceClass, class.OpenPorts) {
		collector, ok := d.Collectors[method]
		if !ok {
			continue
		}

		raw, retries, err := d.runCollector(ctx, collector, ep, credentialsFor(method, pool))
		totalRetries += retries
		if err == nil {
			breaker.RecordSuccess()
			return Result{Method: method, Raw: raw, Retries: totalRetries}
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			breaker.RecordFailure()
			return Result{Err: &pipeline.CollectorError{Kind: pipeline.ErrCancelled, Detail: ctxErr.Error()}, Retries: totalRetries}
		}
	}

	breaker.RecordFailure()
	return Result{Err: lastErr, Retries: totalRetries}
}

// runCollector tries each credential in order, rotating past AuthFailed and
// retrying recoverable errors with backoff, per §4.5.
func (d *Dispatcher) runCollector(ctx context.Context, collector pipeline.Collector, ep pipeline.Endpoint, creds []pipeline.Credential) (map[string]any, int, error) {
	ctx, span := tracing.StartCollectorSpan(ctx, string(collector.Method()), ep.IP)
	defer span.End()

	if len(creds) == 0 {
		creds = []pipeline.Credential{{Kind: pipeline.CredNone}}
	}

	var lastErr error
	retries := 0

	for _, cred := range creds {
		for attempt := 0; attempt <= d.Retry.MaxRetries; attempt++ {
			raw, err := collector.Collect(ctx, ep, cred)
			if err == nil {
				return raw, retries, nil
			}
			lastErr = err

			ce, _ := err.(*pipeline.CollectorError)
			if ce != nil && ce.Kind == pipeline.ErrAuthFailed {
				// Rotate to next credential; don't retry this one.
				break
			}
			if !isRecoverable(err) {
				return nil, retries, err
			}
			if attempt == d.Retry.MaxRetries {
				break // exhausted retries for this credential; try next
			}

			retries++
			if sleepErr := sleepWithContext(ctx, backoffDelay(attempt, d.Retry)); sleepErr != nil {
				return nil, retries, &pipeline.CollectorError{Kind: pipeline.ErrCancelled, Detail: sleepErr.Error()}
			}
		}
	}

	tracing.RecordError(ctx, lastErr)
	return nil, retries, lastErr
}
