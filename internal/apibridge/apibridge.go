// Package apibridge is the controller's only outbound/inbound HTTP
// surface: it pushes snapshot events to the external façade as they
// are published on the bus, and drains the façade's command queue
// once a second, republishing each command as a typed bus event.
package apibridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hsdnet/controller/internal/util"
)

// HTTPClient is the subset of *http.Client this package needs, so
// tests can substitute a client pointed at an httptest.Server without
// any interface on the transport itself.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Publisher is the bus's publish side, used by the command drain to
// republish typed events.
type Publisher interface {
	Publish(topic string, event any)
}

func put(client HTTPClient, ctx context.Context, url string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return util.NewValidationError(url, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(encoded))
	if err != nil {
		return util.NewTransportError(url, "PUT", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return util.NewTransportError(url, "PUT", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return util.NewTransportError(url, "PUT", httpStatusError(resp.StatusCode))
	}
	return nil
}

func get(client HTTPClient, ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return util.NewTransportError(url, "GET", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return util.NewTransportError(url, "GET", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return util.NewTransportError(url, "GET", httpStatusError(resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type httpStatusError int

func (e httpStatusError) Error() string {
	return "unexpected HTTP status " + http.StatusText(int(e))
}

// PostCommand appends command to the façade's queue via POST /queue,
// for operator tooling that injects commands without going through
// whatever drives the façade itself.
func PostCommand(client HTTPClient, ctx context.Context, baseURL, command string) error {
	encoded, err := json.Marshal(command)
	if err != nil {
		return util.NewValidationError(command, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/queue", bytes.NewReader(encoded))
	if err != nil {
		return util.NewTransportError(baseURL, "POST", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return util.NewTransportError(baseURL, "POST", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return util.NewTransportError(baseURL, "POST", httpStatusError(resp.StatusCode))
	}
	return nil
}

const defaultTimeout = 10 * time.Second

// NewHTTPClient builds the *http.Client the CLI entrypoint wires into
// SnapshotPusher/CommandDrain, bounding every façade call so a wedged
// façade can't hang a component's worker goroutine indefinitely.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}
