//go:build !windows

package wmi

import (
	"context"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// Collector is the non-Windows stub: WMI requires DCOM, which is only
// reachable from a Windows host acting as the scanning agent.
type Collector struct{}

// New returns a stub WMI Collector.
func New() *Collector { return &Collector{} }

// Method implements pipeline.Collector.
func (c *Collector) Method() pipeline.CollectorMethod { return pipeline.MethodWMI }

// Collect always reports ProtocolError on non-Windows build targets.
func (c *Collector) Collect(_ context.Context, _ pipeline.Endpoint, _ pipeline.Credential) (map[string]any, error) {
	return nil, &pipeline.CollectorError{Kind: pipeline.ErrProtocolPermanent, Detail: "WMI collection requires a Windows scanning agent"}
}
