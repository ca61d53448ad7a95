package apibridge

import (
	"context"

	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/topology"
	"github.com/hsdnet/controller/internal/util"
)

// policyJSON is the façade-facing representation of one policy: the
// grammar keyword plus its canonical config/policy.txt line. The
// façade is an external system consuming a one-way contract, so this
// need not round-trip back into a model.Policy.
type policyJSON struct {
	Kind string `json:"kind"`
	Line string `json:"line"`
}

type topologyJSON struct {
	Devices []model.Device `json:"devices"`
	Links   []model.Link   `json:"links"`
}

// SnapshotPusher subscribes to Topology, ClassicConfigurations,
// SdnConfigurations and Policies and PUTs each to the façade. A push
// failure is logged; there is no retry — the next event republishes a
// fresh snapshot anyway.
type SnapshotPusher struct {
	client  HTTPClient
	baseURL string
}

// NewSnapshotPusher builds a pusher targeting baseURL (e.g.
// "http://localhost:8000", no trailing slash) via client.
func NewSnapshotPusher(client HTTPClient, baseURL string) *SnapshotPusher {
	return &SnapshotPusher{client: client, baseURL: baseURL}
}

// HandleTopology is the bus handler for the Topology topic.
func (p *SnapshotPusher) HandleTopology(event any) {
	topo, ok := event.(topology.EventTopology)
	if !ok {
		return
	}
	body := topologyJSON{Devices: topo.Devices, Links: topo.Links}
	if body.Devices == nil {
		body.Devices = []model.Device{}
	}
	if body.Links == nil {
		body.Links = []model.Link{}
	}
	p.push("/topology", body)
}

// HandleClassicConfigurations is the bus handler for the
// ClassicConfigurations topic.
func (p *SnapshotPusher) HandleClassicConfigurations(event any) {
	m, ok := event.(map[string][]string)
	if !ok {
		return
	}
	p.push("/configurations/classic", m)
}

// HandleSdnConfigurations is the bus handler for the
// SdnConfigurations topic.
func (p *SnapshotPusher) HandleSdnConfigurations(event any) {
	m, ok := event.(map[string][]string)
	if !ok {
		return
	}
	p.push("/configurations/sdn", m)
}

// HandlePolicies is the bus handler for the Policies topic.
func (p *SnapshotPusher) HandlePolicies(event any) {
	policies, ok := event.([]model.Policy)
	if !ok {
		return
	}
	body := make([]policyJSON, len(policies))
	for i, pol := range policies {
		body[i] = policyJSON{Kind: pol.Kind(), Line: pol.Encode()}
	}
	p.push("/policies", body)
}

func (p *SnapshotPusher) push(path string, body any) {
	if err := put(p.client, context.Background(), p.baseURL+path, body); err != nil {
		util.WithComponent("apibridge").WithField("path", path).
			Errorf("snapshot push failed: %v", err)
	}
}
