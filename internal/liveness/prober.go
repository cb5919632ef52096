// Package liveness implements Stage 1 of the discovery pipeline: deciding
// whether an address is alive via ICMP echo and a TCP connect fan-out,
// grounded on the retry/timeout shape of proxy.retry in the pack's LLM
// proxy teacher but rebuilt against net.Dialer and golang.org/x/net/icmp
// instead of HTTP semantics.
package liveness

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// CanonicalPorts is the fixed port set fanned out to for TCP liveness (§4.2).
var CanonicalPorts = []int{22, 80, 135, 139, 443, 445, 161, 3389}

const (
	icmpTimeout    = 800 * time.Millisecond
	tcpTimeout     = 500 * time.Millisecond
	rdnsTimeout    = 1 * time.Second
	retryDelay     = 500 * time.Millisecond
	ttlLinuxLow    = 60
	ttlLinuxHigh   = 65
	ttlWindowsLow  = 120
	ttlWindowsHigh = 128
)

// Prober probes a single address for liveness.
type Prober struct {
	// Dialer is used for the TCP fan-out; overridable in tests.
	Dialer net.Dialer
}

// New returns a Prober with default timeouts.
func New() *Prober {
	return &Prober{}
}

// Probe implements the liveness contract of §4.2: ICMP echo and TCP
// connect race concurrently against the timeout, one retry on total
// failure, and a best-effort reverse-DNS lookup on success.
func (p *Prober) Probe(ctx context.Context, ep pipeline.Endpoint) pipeline.LivenessResult {
	res := p.attempt(ctx, ep)
	if res.Alive {
		return p.resolveHostname(ctx, ep.IP, res)
	}

	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return res
	}

	res = p.attempt(ctx, ep)
	if res.Alive {
		return p.resolveHostname(ctx, ep.IP, res)
	}
	return res
}

// attempt runs one ICMP + TCP fan-out round and reports the first success.
func (p *Prober) attempt(ctx context.Context, ep pipeline.Endpoint) pipeline.LivenessResult {
	type signal struct {
		alive     bool
		latencyMS float64
		ttl       int
	}

	results := make(chan signal, 1+len(CanonicalPorts))
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		alive, latency, ttl := pingICMP(ctx, ep.IP)
		if alive {
			select {
			case results <- signal{true, latency, ttl}:
			default:
			}
		}
	}()

	for _, port := range CanonicalPorts {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			alive, latency := p.dialTCP(ctx, ep.IP, port)
			if alive {
				select {
				case results <- signal{true, latency, 0}:
				default:
				}
			}
		}(port)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case s := <-results:
		return pipeline.LivenessResult{Alive: true, LatencyMS: s.latencyMS, TTL: s.ttl, OSFamilyHint: ttlHint(s.ttl)}
	case <-done:
		return pipeline.LivenessResult{Alive: false}
	}
}

func (p *Prober) dialTCP(ctx context.Context, ip string, port int) (bool, float64) {
	dctx, cancel := context.WithTimeout(ctx, tcpTimeout)
	defer cancel()

	start := time.Now()
	conn, err := p.Dialer.DialContext(dctx, "tcp", net.JoinHostPort(ip, portString(port)))
	if err != nil {
		return false, 0
	}
	defer conn.Close()
	return true, msSince(start)
}

// pingICMP sends a single ICMP echo request and reports whether a reply
// arrived within icmpTimeout, along with its latency and reply TTL.
func pingICMP(ctx context.Context, ip string) (bool, float64, int) {
	dst := net.ParseIP(ip)
	if dst == nil || dst.To4() == nil {
		return false, 0, 0
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		// Unprivileged ICMP unavailable (no CAP_NET_RAW); TCP fan-out
		// still covers liveness detection.
		return false, 0, 0
	}
	defer conn.Close()

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   int(time.Now().UnixNano() & 0xffff),
			Seq:  1,
			Data: []byte("netdiscover-liveness"),
		},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return false, 0, 0
	}

	deadline := time.Now().Add(icmpTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false, 0, 0
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, &net.IPAddr{IP: dst}); err != nil {
		return false, 0, 0
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			return false, 0, 0
		}
		if peer, ok := peer.(*net.IPAddr); !ok || !peer.IP.Equal(dst) {
			continue
		}
		ttl := ttlFromReply(rb[:n])
		rm, err := icmp.ParseMessage(1, rb[:n])
		if err != nil {
			continue
		}
		if rm.Type == ipv4.ICMPTypeEchoReply {
			return true, msSince(start), ttl
		}
	}
}

// ttlFromReply reads the IPv4 TTL field from a raw ICMP reply packet, best
// effort: ListenPacket("ip4:icmp", ...) strips the IP header on some
// platforms, so a zero TTL here is common and not itself an error.
func ttlFromReply(b []byte) int {
	if len(b) < 9 {
		return 0
	}
	return int(b[8])
}

func ttlHint(ttl int) string {
	switch {
	case ttl >= ttlLinuxLow && ttl <= ttlLinuxHigh:
		return "linux"
	case ttl >= ttlWindowsLow && ttl <= ttlWindowsHigh:
		return "windows"
	default:
		return ""
	}
}

func (p *Prober) resolveHostname(ctx context.Context, ip string, res pipeline.LivenessResult) pipeline.LivenessResult {
	rctx, cancel := context.WithTimeout(ctx, rdnsTimeout)
	defer cancel()

	// Hostname resolution failure is not an error per §4.2; the result
	// stays alive with an empty Hostname.
	names, err := net.DefaultResolver.LookupAddr(rctx, ip)
	if err == nil && len(names) > 0 {
		sort.Strings(names)
		res.Hostname = trimTrailingDot(names[0])
	}
	return res
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func portString(p int) string {
	const digits = "0123456789"
	if p == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = digits[p%10]
		p /= 10
	}
	return string(buf[i:])
}

func trimTrailingDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}
