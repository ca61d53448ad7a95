package main

import (
	"sync"

	"github.com/hsdnet/controller/internal/configgen"
	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/topology"
)

// bridgePublisher is the narrow slice of *bus.Bus the generator
// bridge needs.
type bridgePublisher interface {
	Publish(topic string, event any)
}

// generatorBridge holds the Configuration Generator's two inputs —
// the latest policy list and the latest fused topology — and
// recompiles whenever either changes, since configgen.Generator.Run
// takes both at once but the bus delivers them on separate topics.
type generatorBridge struct {
	generator *configgen.Generator
	bus       bridgePublisher

	mu           sync.Mutex
	policies     []model.Policy
	topo         topology.EventTopology
	havePolicies bool
	haveTopo     bool
}

func newGeneratorBridge(generator *configgen.Generator, bus bridgePublisher) *generatorBridge {
	return &generatorBridge{generator: generator, bus: bus}
}

// handlePolicies is the bus handler for the Policies topic.
func (c *generatorBridge) handlePolicies(event any) {
	policies, ok := event.([]model.Policy)
	if !ok {
		return
	}
	c.mu.Lock()
	c.policies = policies
	c.havePolicies = true
	topo, haveTopo := c.topo, c.haveTopo
	c.mu.Unlock()
	if haveTopo {
		c.compile(policies, topo)
	}
}

// handleTopology is the bus handler for the Topology topic.
func (c *generatorBridge) handleTopology(event any) {
	topo, ok := event.(topology.EventTopology)
	if !ok {
		return
	}
	c.mu.Lock()
	c.topo = topo
	c.haveTopo = true
	policies, havePolicies := c.policies, c.havePolicies
	c.mu.Unlock()
	if havePolicies {
		c.compile(policies, topo)
	}
}

func (c *generatorBridge) compile(policies []model.Policy, topo topology.EventTopology) {
	result, ran := c.generator.Run(policies, topo)
	if !ran {
		return
	}
	c.bus.Publish(configgen.TopicClassicConfigurations, result.Classic)
	c.bus.Publish(configgen.TopicSdnConfigurations, result.SDN)
}
