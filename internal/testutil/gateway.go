package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrScriptExhausted is returned when a ScriptedGateway has no steps left.
var ErrScriptExhausted = errors.New("testutil: no scripted response left")

// Step is one scripted gateway outcome. Exactly one of Response or Err is used;
// Err wins when both are set.
type Step struct {
	Response any
	Err      error

	// Release, when non-nil, blocks the call until it is closed.
	Release <-chan struct{}
}

// ScriptedGateway is an in-memory gateway that replays scripted steps in order.
// Responses are copied into the caller's value through a JSON round trip, so a
// response whose shape does not match the requested type fails to decode.
type ScriptedGateway struct {
	mu    sync.Mutex
	steps []Step
	urls  []string
}

// NewScriptedGateway creates a gateway that replays steps.
func NewScriptedGateway(steps ...Step) *ScriptedGateway {
	return &ScriptedGateway{steps: steps}
}

// Push appends steps to the script.
func (g *ScriptedGateway) Push(steps ...Step) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.steps = append(g.steps, steps...)
}

// GetJSON implements the client gateway contract.
func (g *ScriptedGateway) GetJSON(ctx context.Context, rawURL string, v any) error {
	g.mu.Lock()
	g.urls = append(g.urls, rawURL)
	if len(g.steps) == 0 {
		g.mu.Unlock()
		return ErrScriptExhausted
	}
	step := g.steps[0]
	g.steps = g.steps[1:]
	g.mu.Unlock()

	if step.Release != nil {
		select {
		case <-step.Release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if step.Err != nil {
		return step.Err
	}

	data, err := json.Marshal(step.Response)
	if err != nil {
		return fmt.Errorf("testutil: encode scripted response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("testutil: decode scripted response: %w", err)
	}
	return nil
}

// Calls returns the number of GetJSON invocations.
func (g *ScriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.urls)
}

// URLs returns the URLs requested so far, in call order.
func (g *ScriptedGateway) URLs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.urls...)
}
