// Package ssh implements the kind=ssh collector (§4.4.2): platform
// detection followed by a fixed, per-vendor command bundle, grounded on
// golang.org/x/crypto/ssh as already pulled in transitively by the pack's
// erigon teacher, and on the vendor-command-table pattern used by network
// discovery tooling elsewhere in the pack.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

const (
	dialTimeout    = 5 * time.Second
	sessionTimeout = 10 * time.Second
)

// Platform names a detected operating environment.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformESXi    Platform = "esxi"
	PlatformCisco   Platform = "cisco"
	PlatformJuniper Platform = "juniper"
	PlatformAruba   Platform = "aruba"
	PlatformHuawei  Platform = "huawei"
	PlatformFortiOS Platform = "fortios"
	PlatformMikroTik Platform = "mikrotik"
	PlatformUnknown Platform = "unknown"
)

// probeCommand pairs a detection command with the platform it identifies
// when the command succeeds (exits 0 and produces non-empty output).
type probeCommand struct {
	cmd      string
	platform Platform
}

var detectionProbes = []probeCommand{
	{"uname -s", PlatformLinux},
	{"vmware -v", PlatformESXi},
	{"show version", PlatformCisco}, // also matches Juniper/Aruba/Huawei; disambiguated below
	{"get system status", PlatformFortiOS},
	{"/system resource print", PlatformMikroTik},
}

// PlatformProfile is the fixed, non-shell-expanded command bundle run
// against a detected platform (§4.4.2 "no shell expansion of
// attacker-controlled fields").
type PlatformProfile struct {
	DisablePaging []string // run first, ignore failures
	Commands      []string // canonical collection commands, in order
	EnableCmd     string   // Cisco "enable" elevation, empty if not applicable
}

var profiles = map[Platform]PlatformProfile{
	PlatformLinux: {
		Commands: []string{
			"hostname", "uname -a", "cat /etc/os-release",
			"lscpu", "free -m", "df -h", "lsblk",
			"dmidecode -s system-serial-number",
			"dmidecode -s system-manufacturer",
			"dmidecode -s system-product-name",
			"ip -o link show",
		},
	},
	PlatformESXi: {
		Commands: []string{
			"hostname", "vmware -v", "esxcli hardware platform get",
			"esxcli storage filesystem list", "esxcli network nic list",
		},
	},
	PlatformCisco: {
		DisablePaging: []string{"terminal length 0"},
		Commands:      []string{"show version", "show inventory", "show interfaces status"},
		EnableCmd:     "enable",
	},
	PlatformJuniper: {
		DisablePaging: []string{"set cli screen-length 0"},
		Commands:      []string{"show version", "show chassis hardware", "show interfaces terse"},
	},
	PlatformAruba: {
		DisablePaging: []string{"no paging"},
		Commands:      []string{"show version", "show system", "show interfaces brief"},
	},
	PlatformHuawei: {
		DisablePaging: []string{"screen-length 0 temporary"},
		Commands:      []string{"display version", "display device", "display interface brief"},
	},
	PlatformFortiOS: {
		Commands: []string{"get system status", "get system performance status", "get hardware nic"},
	},
	PlatformMikroTik: {
		Commands: []string{"/system resource print", "/system routerboard print", "/interface print"},
	},
}

// Collector implements pipeline.Collector for kind=ssh.
type Collector struct{}

// New returns an SSH Collector.
func New() *Collector { return &Collector{} }

// Method implements pipeline.Collector.
func (c *Collector) Method() pipeline.CollectorMethod { return pipeline.MethodSSH }

// Collect implements pipeline.Collector.
func (c *Collector) Collect(ctx context.Context, ep pipeline.Endpoint, cred pipeline.Credential) (map[string]any, error) {
	client, err := dial(ctx, ep.IP, cred)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	platform, err := detectPlatform(client)
	if err != nil {
		return nil, err
	}

	profile, ok := profiles[platform]
	if !ok {
		return nil, &pipeline.CollectorError{Kind: pipeline.ErrProtocolPermanent, Detail: "no command profile for detected platform"}
	}

	if profile.EnableCmd != "" && cred.EnableSecret != "" {
		runCommand(client, fmt.Sprintf("%s\n%s", profile.EnableCmd, cred.EnableSecret))
	}

	for _, cmd := range profile.DisablePaging {
		runCommand(client, cmd) // best-effort, failures ignored
	}

	raw := map[string]any{"platform": string(platform)}
	for _, cmd := range profile.Commands {
		out, err := runCommand(client, cmd)
		if err != nil {
			continue // later failures don't discard earlier data, per §4.4.1 analogue
		}
		raw[commandKey(cmd)] = out
	}

	parseOutputs(platform, raw)
	return raw, nil
}

func dial(ctx context.Context, ip string, cred pipeline.Credential) (*ssh.Client, error) {
	port := 22
	if cred.Port != 0 {
		port = cred.Port
	}

	config := &ssh.ClientConfig{
		User: cred.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(cred.Secret),
		},
		// Record-and-accept host key policy: discovery is read-only and
		// runs against unenrolled devices, so no prior known_hosts entry
		// can be expected to exist.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", ip, port)
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		client, err := ssh.Dial("tcp", addr, config)
		resultCh <- dialResult{client, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, classifyDialError(r.err)
		}
		return r.client, nil
	case <-dctx.Done():
		return nil, &pipeline.CollectorError{Kind: pipeline.ErrTimeout, Detail: "ssh dial timed out"}
	}
}

func classifyDialError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "permission denied"):
		return &pipeline.CollectorError{Kind: pipeline.ErrAuthFailed, Detail: err.Error()}
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "i/o timeout"):
		return &pipeline.CollectorError{Kind: pipeline.ErrTimeout, Detail: err.Error()}
	default:
		return &pipeline.CollectorError{Kind: pipeline.ErrUnreachable, Detail: err.Error()}
	}
}

func detectPlatform(client *ssh.Client) (Platform, error) {
	for _, probe := range detectionProbes {
		out, err := runCommand(client, probe.cmd)
		if err != nil || strings.TrimSpace(out) == "" {
			continue
		}
		return disambiguate(probe.platform, out), nil
	}
	return PlatformUnknown, &pipeline.CollectorError{Kind: pipeline.ErrProtocolPermanent, Detail: "no platform probe matched"}
}

// disambiguate refines the "show version" probe match, which several
// vendors accept, using the response body.
func disambiguate(p Platform, output string) Platform {
	if p != PlatformCisco {
		return p
	}
	low := strings.ToLower(output)
	switch {
	case strings.Contains(low, "junos"):
		return PlatformJuniper
	case strings.Contains(low, "arubaos"):
		return PlatformAruba
	case strings.Contains(low, "huawei"), strings.Contains(low, "vrp"):
		return PlatformHuawei
	default:
		return PlatformCisco
	}
}

func runCommand(client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", &pipeline.CollectorError{Kind: pipeline.ErrProtocolTransient, Detail: err.Error()}
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case err := <-done:
		if err != nil {
			return "", &pipeline.CollectorError{Kind: pipeline.ErrProtocolTransient, Detail: err.Error()}
		}
		return stdout.String(), nil
	case <-time.After(sessionTimeout):
		return "", &pipeline.CollectorError{Kind: pipeline.ErrTimeout, Detail: "command timed out: " + cmd}
	}
}

func commandKey(cmd string) string {
	key := strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '/' || r == '-':
			return '_'
		default:
			return r
		}
	}, cmd)
	for strings.Contains(key, "__") {
		key = strings.ReplaceAll(key, "__", "_")
	}
	return strings.Trim(key, "_")
}
