// Package httpprobe implements the kind=none collector (§4.4.4): a fast
// HTTP/HTTPS banner grab plus an optional UPnP SSDP discovery probe,
// grounded on the pack's cloudmigrate discovery HTTP banner-grab pattern.
package httpprobe

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

const (
	httpTimeout = 1200 * time.Millisecond
	ssdpTimeout = 1200 * time.Millisecond
	ssdpPort    = 1900
)

// vendorSignature maps a banner substring to a device class hint and model.
type vendorSignature struct {
	substr string
	class  pipeline.DeviceType
	model  string
}

var vendorTable = []vendorSignature{
	{"lexmark", pipeline.DevicePrinter, "Lexmark"},
	{"hp laserjet", pipeline.DevicePrinter, "HP LaserJet"},
	{"jetdirect", pipeline.DevicePrinter, "HP JetDirect"},
	{"cups", pipeline.DevicePrinter, "CUPS"},
	{"fortios", pipeline.DeviceFirewall, "FortiGate"},
	{"pan-os", pipeline.DeviceFirewall, "Palo Alto"},
	{"sonicwall", pipeline.DeviceFirewall, "SonicWall"},
	{"unifi", pipeline.DeviceAccessPoint, "UniFi"},
	{"arubaos", pipeline.DeviceAccessPoint, "Aruba"},
	{"esxi", pipeline.DeviceHypervisor, "VMware ESXi"},
	{"proxmox", pipeline.DeviceHypervisor, "Proxmox VE"},
	{"zkteco", pipeline.DeviceFingerprintRdr, "ZKTeco"},
}

var titleRegex = regexp.MustCompile(`(?is)<title>(.*?)</title>`)

// Collector implements pipeline.Collector for kind=none.
type Collector struct{}

// New returns an httpprobe Collector.
func New() *Collector { return &Collector{} }

// Method implements pipeline.Collector.
func (c *Collector) Method() pipeline.CollectorMethod { return pipeline.MethodHTTP }

// Collect implements pipeline.Collector. cred is ignored; the HTTP probe
// is unauthenticated by design.
func (c *Collector) Collect(ctx context.Context, ep pipeline.Endpoint, _ pipeline.Credential) (map[string]any, error) {
	raw := map[string]any{}

	httpOK := c.grab(ctx, "http", ep.IP, raw)
	httpsOK := c.grab(ctx, "https", ep.IP, raw)
	if !httpOK && !httpsOK {
		return nil, &pipeline.CollectorError{Kind: pipeline.ErrUnreachable, Detail: "no HTTP(S) response on port 80/443"}
	}

	if server, _ := raw["server"].(string); server != "" {
		applyVendorTable(server, raw)
	}
	if title, _ := raw["title"].(string); title != "" {
		applyVendorTable(title, raw)
	}

	if hasSSDPPort(ep.OpenPorts) {
		if body, err := ProbeSSDP(ctx, ep.IP); err == nil && body != "" {
			raw["ssdp_response"] = body
			applyVendorTable(body, raw)
		}
	}

	return raw, nil
}

func hasSSDPPort(openPorts []int) bool {
	for _, p := range openPorts {
		if p == ssdpPort {
			return true
		}
	}
	return false
}

// grab performs one HTTP(S) GET and records Server/title into raw. It
// returns false if the request could not be completed at all.
func (c *Collector) grab(ctx context.Context, scheme, ip string, raw map[string]any) bool {
	client := &http.Client{
		Timeout: httpTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // banner-grab only
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	url := fmt.Sprintf("%s://%s/", scheme, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if server := resp.Header.Get("Server"); server != "" {
		raw["server"] = server
	}

	buf := make([]byte, 8192)
	n, _ := resp.Body.Read(buf)
	if title := titleRegex.FindStringSubmatch(string(buf[:n])); len(title) > 1 {
		raw["title"] = strings.TrimSpace(title[1])
	}
	raw[scheme+"_status"] = resp.StatusCode
	return true
}

func applyVendorTable(text string, raw map[string]any) {
	low := strings.ToLower(text)
	for _, sig := range vendorTable {
		if strings.Contains(low, sig.substr) {
			raw["device_class_hint"] = string(sig.class)
			raw["model"] = sig.model
			return
		}
	}
}

// ProbeSSDP issues a single unicast UPnP M-SEARCH on UDP/1900 and returns
// the raw response body, or "" if none arrived within the timeout. Callers
// should only invoke this when 1900 is in the endpoint's open_ports.
func ProbeSSDP(ctx context.Context, ip string) (string, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(ip, fmt.Sprintf("%d", ssdpPort)))
	if err != nil {
		return "", &pipeline.CollectorError{Kind: pipeline.ErrUnreachable, Detail: err.Error()}
	}
	defer conn.Close()

	deadline := time.Now().Add(ssdpTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	msearch := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 1\r\n" +
		"ST: ssdp:all\r\n\r\n"

	if _, err := conn.Write([]byte(msearch)); err != nil {
		return "", &pipeline.CollectorError{Kind: pipeline.ErrProtocolTransient, Detail: err.Error()}
	}

	r := bufio.NewReader(conn)
	buf := make([]byte, 2048)
	n, err := r.Read(buf)
	if err != nil {
		return "", &pipeline.CollectorError{Kind: pipeline.ErrTimeout, Detail: "no SSDP reply"}
	}
	return string(buf[:n]), nil
}
