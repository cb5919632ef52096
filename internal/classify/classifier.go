// Package classify implements Stage 2 of the discovery pipeline: a curated
// TCP port scan, banner grabbing, and a weighted signature match that
// assigns a device class and an independent OS family, grounded on the
// port-table classification pattern in the pack's cloudmigrate
// agent-internal-discovery code but rebuilt against this system's own
// class taxonomy and scoring table.
package classify

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// snmpSysDescrOID is sysDescr.0, the single OID polled by the SNMP banner
// probe below.
const snmpSysDescrOID = "1.3.6.1.2.1.1.1.0"

// CuratedPorts is the fixed ~25-port set scanned for every alive endpoint.
var CuratedPorts = []int{
	21, 22, 23, 80, 135, 139, 161, 443, 445, 515, 631, 902, 903,
	2049, 3389, 4370, 5985, 5986, 8006, 8080, 8443, 9100, 10000, 1900, 62078,
}

const (
	portScanTimeout = 2 * time.Second
	bannerTimeout   = 2 * time.Second
	snmpTimeout     = 1500 * time.Millisecond
	classThreshold  = 50
)

// signature maps a fixed set of port/banner conditions to a score in
// [0,100] for one candidate device class.
type signature struct {
	class          pipeline.DeviceType
	requiredPorts  []int // any of these open contributes points
	forbiddenPorts []int // any of these open zeroes the class out
	hostnameRegex  *regexp.Regexp
	bannerSubstrs  []string
	// priority is not read; ties between equal scores are broken by
	// classPriority (see priorityOf).
	priority int
}

// classPriority is the fixed tie-break order (§4.3 step 3), lower index wins.
var classPriority = []pipeline.DeviceType{
	pipeline.DevicePrinter,
	pipeline.DeviceHypervisor,
	pipeline.DeviceFirewall,
	pipeline.DeviceSwitch,
	pipeline.DeviceAccessPoint,
	pipeline.DeviceLinuxServer,
	pipeline.DeviceWindowsServer,
	pipeline.DeviceWorkstation,
	pipeline.DeviceLaptop,
	pipeline.DeviceUnknown,
}

func priorityOf(c pipeline.DeviceType) int {
	for i, x := range classPriority {
		if x == c {
			return i
		}
	}
	return len(classPriority)
}

var signatures = []signature{
	{
		class:         pipeline.DevicePrinter,
		requiredPorts: []int{9100, 515, 631},
		bannerSubstrs: []string{"printer", "jetdirect", "cups"},
	},
	{
		class:         pipeline.DeviceHypervisor,
		requiredPorts: []int{902, 903, 8006},
		bannerSubstrs: []string{"esxi", "vmware", "proxmox"},
	},
	{
		class:          pipeline.DeviceFirewall,
		requiredPorts:  []int{443, 8443},
		hostnameRegex:  regexp.MustCompile(`(?i)(fw|firewall|fortigate|palo|asa)`),
		bannerSubstrs:  []string{"fortios", "fortigate", "pan-os", "asa"},
		forbiddenPorts: []int{9100},
	},
	{
		class:         pipeline.DeviceSwitch,
		requiredPorts: []int{22, 23},
		hostnameRegex: regexp.MustCompile(`(?i)(sw|switch|core|access)`),
		bannerSubstrs: []string{"cisco ios", "junos", "arubaos-switch"},
	},
	{
		class:         pipeline.DeviceAccessPoint,
		requiredPorts: []int{80, 443},
		hostnameRegex: regexp.MustCompile(`(?i)(ap-|-ap|wifi|wap)`),
		bannerSubstrs: []string{"arubaos", "unifi", "aironet"},
	},
	{
		class:          pipeline.DeviceLinuxServer,
		requiredPorts:  []int{22},
		bannerSubstrs:  []string{"openssh", "ubuntu", "debian", "centos", "rhel"},
		forbiddenPorts: []int{135, 445},
	},
	{
		class:         pipeline.DeviceWindowsServer,
		requiredPorts: []int{135, 445, 3389, 5985, 5986},
		hostnameRegex: regexp.MustCompile(`(?i)(srv|server|dc\d*)`),
	},
	{
		class:         pipeline.DeviceFingerprintRdr,
		requiredPorts: []int{4370},
		bannerSubstrs: []string{"zkteco", "biometric"},
	},
	{
		class:          pipeline.DeviceWorkstation,
		requiredPorts:  []int{135, 445, 3389},
		hostnameRegex:  regexp.MustCompile(`(?i)(^ws|wks|workstation|desktop)`),
		forbiddenPorts: []int{9100, 515, 902},
	},
	{
		class:          pipeline.DeviceLaptop,
		requiredPorts:  []int{135, 445, 3389},
		hostnameRegex:  regexp.MustCompile(`(?i)(lt|lap|mobile)`),
		forbiddenPorts: []int{9100, 515, 902},
	},
}

// Classifier scans an alive endpoint and produces a Classification.
type Classifier struct {
	Dialer net.Dialer
}

// New returns a Classifier with default settings.
func New() *Classifier {
	return &Classifier{}
}

// Classify implements the §4.3 contract.
func (c *Classifier) Classify(ctx context.Context, ep pipeline.Endpoint, hostname string) pipeline.Classification {
	openPorts, services := c.scan(ctx, ep.IP)

	class, classScore := c.bestClass(openPorts, services, hostname)
	osFamily, osStrength := osFamilySignal(openPorts, services)

	confidence := float64(classScore+osStrength) / 150.0
	if confidence > 1.0 {
		confidence = 1.0
	}

	return pipeline.Classification{
		OSFamily:    osFamily,
		DeviceClass: class,
		OpenPorts:   openPorts,
		Services:    services,
		Confidence:  confidence,
	}
}

func (c *Classifier) scan(ctx context.Context, ip string) ([]int, map[int]string) {
	var mu sync.Mutex
	openPorts := make([]int, 0, len(CuratedPorts))
	services := make(map[int]string)

	var wg sync.WaitGroup
	for _, port := range CuratedPorts {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()

			// SNMP is UDP-only; nothing is listening on TCP/161, so it gets
			// its own probe instead of the TCP dial+grabBanner path below.
			if port == 161 {
				banner := snmpBanner(ip)
				if banner == "" {
					return
				}
				mu.Lock()
				openPorts = append(openPorts, port)
				services[port] = banner
				mu.Unlock()
				return
			}

			dctx, cancel := context.WithTimeout(ctx, portScanTimeout)
			defer cancel()

			conn, err := c.Dialer.DialContext(dctx, "tcp", net.JoinHostPort(ip, fmt.Sprintf("%d", port)))
			if err != nil {
				return
			}
			banner := grabBanner(conn, port)
			conn.Close()

			mu.Lock()
			openPorts = append(openPorts, port)
			if banner != "" {
				services[port] = banner
			}
			mu.Unlock()
		}(port)
	}
	wg.Wait()

	sort.Ints(openPorts)
	return openPorts, services
}

// snmpBanner issues a single sysDescr.0 GET on the community "public",
// returning the reply as a banner string for the signature matcher. Open
// ports that don't speak SNMPv2c (or that reject the community) return "".
func snmpBanner(ip string) string {
	client := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      161,
		Community: "public",
		Version:   gosnmp.Version2c,
		Timeout:   snmpTimeout,
		Retries:   0,
	}
	if err := client.Connect(); err != nil {
		return ""
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{snmpSysDescrOID})
	if err != nil || len(result.Variables) == 0 {
		return ""
	}
	if s, ok := result.Variables[0].Value.([]byte); ok {
		return strings.TrimSpace(string(s))
	}
	return ""
}

// grabBanner reads an SSH greeting or HTTP Server/title for the given TCP
// connection. SNMP (port 161) never reaches here: it's UDP and handled by
// snmpBanner in scan before any TCP dial is attempted.
func grabBanner(conn net.Conn, port int) string {
	_ = conn.SetDeadline(time.Now().Add(bannerTimeout))

	switch port {
	case 22:
		r := bufio.NewReader(conn)
		line, err := r.ReadString('\n')
		if err != nil {
			return ""
		}
		return strings.TrimSpace(line)
	case 80, 8080, 443, 8443, 5985, 5986:
		fmt.Fprintf(conn, "GET / HTTP/1.0\r\n\r\n")
		r := bufio.NewReader(conn)
		var server string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				break
			}
			line = strings.TrimSpace(line)
			if line == "" {
				break
			}
			if strings.HasPrefix(strings.ToLower(line), "server:") {
				server = strings.TrimSpace(line[len("server:"):])
			}
		}
		body := make([]byte, 4096)
		n, _ := r.Read(body)
		if title := extractTitle(string(body[:n])); title != "" {
			if server != "" {
				return server + " " + title
			}
			return title
		}
		return server
	default:
		return ""
	}
}

var titleRegex = regexp.MustCompile(`(?is)<title>(.*?)</title>`)

func extractTitle(body string) string {
	m := titleRegex.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func osFamilySignal(openPorts []int, services map[int]string) (string, float64) {
	has := func(p int) bool {
		for _, x := range openPorts {
			if x == p {
				return true
			}
		}
		return false
	}

	allBanners := strings.ToLower(strings.Join(mapValues(services), " "))

	switch {
	case strings.Contains(allBanners, "esxi") || strings.Contains(allBanners, "vmware"):
		return "hypervisor", 80
	case strings.Contains(allBanners, "ios") || strings.Contains(allBanners, "junos") || strings.Contains(allBanners, "fortios"):
		return "network", 80
	case strings.Contains(allBanners, "jetdirect") || strings.Contains(allBanners, "cups"):
		return "printer", 80
	case has(135) || has(139) || has(445) || has(3389):
		if strings.Contains(allBanners, "openssh") {
			return "unknown", 30
		}
		return "windows", 70
	case has(22):
		if has(135) || has(445) || has(3389) {
			return "unknown", 30
		}
		return "linux", 70
	default:
		return "unknown", 0
	}
}

func mapValues(m map[int]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func (c *Classifier) bestClass(openPorts []int, services map[int]string, hostname string) (pipeline.DeviceType, float64) {
	open := make(map[int]bool, len(openPorts))
	for _, p := range openPorts {
		open[p] = true
	}
	banners := strings.ToLower(strings.Join(mapValues(services), " "))

	bestScore := -1.0
	bestClass := pipeline.DeviceUnknown
	bestPriority := priorityOf(pipeline.DeviceUnknown)

	for _, sig := range signatures {
		score := scoreSignature(sig, open, banners, hostname)
		p := priorityOf(sig.class)
		if score > bestScore || (score == bestScore && p < bestPriority) {
			bestScore = score
			bestClass = sig.class
			bestPriority = p
		}
	}

	if bestScore < classThreshold {
		return pipeline.DeviceUnknown, bestScore
	}
	return bestClass, bestScore
}

func scoreSignature(sig signature, open map[int]bool, banners, hostname string) float64 {
	for _, fp := range sig.forbiddenPorts {
		if open[fp] {
			return 0
		}
	}

	score := 0.0
	matchedPort := false
	for _, rp := range sig.requiredPorts {
		if open[rp] {
			matchedPort = true
			score += 40.0 / float64(len(sig.requiredPorts))
		}
	}
	if !matchedPort {
		return 0
	}

	for _, sub := range sig.bannerSubstrs {
		if strings.Contains(banners, sub) {
			score += 40
			break
		}
	}

	if sig.hostnameRegex != nil && sig.hostnameRegex.MatchString(hostname) {
		score += 20
	}

	if score > 100 {
		score = 100
	}
	return score
}
