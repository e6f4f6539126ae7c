package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"tradingagents/internal/market"
)

const concurrentBatchLimit = 4

// Dispatcher answers a model turn's tool calls. Every call gets
// exactly one tool message with the matching tool_call_id; failures
// are answered as diagnostic text, never raised.
type Dispatcher struct {
	registry    *Registry
	toolTimeout time.Duration
	log         *logrus.Entry
}

func NewDispatcher(registry *Registry, toolTimeout time.Duration) *Dispatcher {
	if toolTimeout <= 0 {
		toolTimeout = 60 * time.Second
	}
	return &Dispatcher{
		registry:    registry,
		toolTimeout: toolTimeout,
		log:         logrus.WithField("component", "tools"),
	}
}

// Dispatch runs the batch and returns one tool message per call, in
// call order. Side-effect-free tools run concurrently under a small
// bound; everything else runs sequentially.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []schema.ToolCall) []*schema.Message {
	out := make([]*schema.Message, len(calls))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrentBatchLimit)
	for i, call := range calls {
		desc, ok := d.registry.Lookup(call.Function.Name)
		if ok && desc.SideEffectFree {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, call schema.ToolCall) {
				defer wg.Done()
				defer func() { <-sem }()
				out[i] = d.answer(ctx, call)
			}(i, call)
			continue
		}
		out[i] = d.answer(ctx, call)
	}
	wg.Wait()
	return out
}

// answer produces the single tool message for one call.
func (d *Dispatcher) answer(ctx context.Context, call schema.ToolCall) *schema.Message {
	name := call.Function.Name
	desc, ok := d.registry.Lookup(name)
	if !ok {
		d.log.WithField("tool", name).Warn("unknown tool requested")
		return schema.ToolMessage(fmt.Sprintf("unknown tool: %s", name), call.ID)
	}

	args, err := parseArgs(call.Function.Arguments)
	if err != nil {
		return schema.ToolMessage(fmt.Sprintf("invalid arguments for %s: %v", name, err), call.ID)
	}
	if diag := validateArgs(desc, args); diag != "" {
		return schema.ToolMessage(diag, call.ID)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.toolTimeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := desc.Handler(callCtx, args)
		done <- outcome{text, err}
	}()

	select {
	case <-callCtx.Done():
		if ctx.Err() != nil {
			d.log.WithField("tool", name).Warn("tool call cancelled")
			return schema.ToolMessage(fmt.Sprintf("tool %s cancelled before completion", name), call.ID)
		}
		d.log.WithField("tool", name).Warn("tool call timed out")
		return schema.ToolMessage(fmt.Sprintf("tool %s timed out after %s", name, d.toolTimeout), call.ID)
	case result := <-done:
		if result.err != nil {
			d.log.WithField("tool", name).WithError(result.err).Warn("tool call failed")
			return schema.ToolMessage(fmt.Sprintf("tool %s failed: %v", name, result.err), call.ID)
		}
		return schema.ToolMessage(result.text, call.ID)
	}
}

func parseArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// validateArgs checks the call against the descriptor's arg spec.
// Returns a diagnostic string on failure, empty on success.
func validateArgs(desc *ToolDescriptor, args map[string]any) string {
	for _, spec := range desc.Args {
		value, present := args[spec.Name]
		if !present {
			if spec.Required {
				return fmt.Sprintf("missing required argument %q for %s", spec.Name, desc.Name)
			}
			continue
		}
		if !typeMatches(spec.Type, value) {
			return fmt.Sprintf("argument %q of %s must be %s", spec.Name, desc.Name, spec.Type)
		}
		if spec.Ticker {
			ticker, _ := value.(string)
			if _, err := market.Classify(ticker); err != nil {
				return fmt.Sprintf("argument %q of %s: %v", spec.Name, desc.Name, err)
			}
		}
	}
	return ""
}

func typeMatches(t schema.DataType, value any) bool {
	switch t {
	case schema.String:
		_, ok := value.(string)
		return ok
	case schema.Integer:
		// JSON numbers decode as float64
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case schema.Number:
		_, ok := value.(float64)
		return ok
	case schema.Boolean:
		_, ok := value.(bool)
		return ok
	default:
		return true
	}
}

// String pulls a string arg with a default.
func String(args map[string]any, name, fallback string) string {
	if v, ok := args[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Int pulls an integer arg with a default.
func Int(args map[string]any, name string, fallback int) int {
	if v, ok := args[name].(float64); ok {
		return int(v)
	}
	return fallback
}
