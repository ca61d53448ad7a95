package apibridge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hsdnet/controller/internal/util"
)

// Bus topics the command drain republishes classified /queue commands
// on, keyed by the command's leading word.
const (
	TopicPolicyAPI        = "PolicyAPI"
	TopicClassicDeviceAPI = "ClassicDeviceAPI"
	TopicSdnDeviceAPI     = "SdnDeviceAPI"
)

// PolicyAPI carries a "policy ..." command's words after the leading
// "policy" token, e.g. ["new", "disable", "r1", "Gi2"].
type PolicyAPI struct{ Words []string }

// ClassicDeviceAPI carries a "classic-device ..." command's words
// after the leading token.
type ClassicDeviceAPI struct{ Words []string }

// SdnDeviceAPI carries a "sdn-device ..." command's words after the
// leading token.
type SdnDeviceAPI struct{ Words []string }

// CommandDrain polls the façade's /queue once per interval, and
// republishes every returned command as a typed bus event classified
// by its first token.
type CommandDrain struct {
	client   HTTPClient
	baseURL  string
	bus      Publisher
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewCommandDrain builds a drain polling baseURL+"/queue" every
// interval and publishing classified commands on bus.
func NewCommandDrain(client HTTPClient, baseURL string, bus Publisher, interval time.Duration) *CommandDrain {
	return &CommandDrain{client: client, baseURL: baseURL, bus: bus, interval: interval}
}

// Start begins polling; it returns immediately and runs until Stop.
func (d *CommandDrain) Start(ctx context.Context) {
	d.scheduleNext(ctx, 0)
}

// Stop halts future polls. A poll already in flight still completes.
func (d *CommandDrain) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *CommandDrain) scheduleNext(ctx context.Context, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.timer = time.AfterFunc(delay, func() { d.runCycle(ctx) })
}

func (d *CommandDrain) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	d.drainOnce(ctx)
	d.scheduleNext(ctx, d.interval)
}

// drainOnce runs a single GET+classify+publish pass, independent of
// the scheduling loop so tests can call it directly.
func (d *CommandDrain) drainOnce(ctx context.Context) {
	var commands []string
	if err := get(d.client, ctx, d.baseURL+"/queue", &commands); err != nil {
		util.WithComponent("apibridge").Errorf("queue drain failed: %v", err)
		return
	}
	for _, cmd := range commands {
		topic, event, ok := classify(cmd)
		if !ok {
			util.WithComponent("apibridge").WithField("command", cmd).
				Warn("unrecognized queue command, dropping")
			continue
		}
		d.bus.Publish(topic, event)
	}
}

func classify(cmd string) (topic string, event any, ok bool) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "", nil, false
	}
	rest := fields[1:]
	switch fields[0] {
	case "policy":
		return TopicPolicyAPI, PolicyAPI{Words: rest}, true
	case "classic-device":
		return TopicClassicDeviceAPI, ClassicDeviceAPI{Words: rest}, true
	case "sdn-device":
		return TopicSdnDeviceAPI, SdnDeviceAPI{Words: rest}, true
	default:
		return "", nil, false
	}
}
