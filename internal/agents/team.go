// Package agents implements the LLM roles of the pipeline: the analyst
// team, the bull/bear research debate, the trader and the risk
// management debate. Each role is a node function over the shared run
// state; nodes return an update record instead of mutating state.
package agents

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"tradingagents/internal/config"
	"tradingagents/internal/llm"
	"tradingagents/internal/models"
	"tradingagents/internal/tools"
)

// Node is one agent step. It reads the state and returns the update to
// fold in; the driver owns the fold.
type Node func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error)

// ModelProvider builds chat model handles. Satisfied by llm.Factory.
type ModelProvider interface {
	New(ctx context.Context, profile llm.Profile) (model.ToolCallingChatModel, error)
	FreshHandlePerInvoke() bool
}

// Team wires every agent role against one model provider and one tool
// registry.
type Team struct {
	cfg      *config.Config
	provider ModelProvider
	tools    *tools.Registry
	dispatch *tools.Dispatcher
	log      *logrus.Entry

	mu     sync.Mutex
	cached map[llm.Profile]model.ToolCallingChatModel
}

func NewTeam(cfg *config.Config, provider ModelProvider, registry *tools.Registry) *Team {
	return &Team{
		cfg:      cfg,
		provider: provider,
		tools:    registry,
		dispatch: tools.NewDispatcher(registry, time.Duration(cfg.ToolTimeoutSec)*time.Second),
		log:      logrus.WithField("component", "agents"),
	}
}

// handle returns a chat model for the profile. Providers whose handles
// cache bound toolsets get a fresh handle every call; others are built
// once and reused.
func (t *Team) handle(ctx context.Context, profile llm.Profile) (model.ToolCallingChatModel, error) {
	if t.provider.FreshHandlePerInvoke() {
		return t.provider.New(ctx, profile)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cached == nil {
		t.cached = make(map[llm.Profile]model.ToolCallingChatModel)
	}
	if m, ok := t.cached[profile]; ok {
		return m, nil
	}
	m, err := t.provider.New(ctx, profile)
	if err != nil {
		return nil, err
	}
	t.cached[profile] = m
	return m, nil
}

// generate runs one model turn without tools.
func (t *Team) generate(ctx context.Context, profile llm.Profile, messages []*schema.Message) (*schema.Message, error) {
	m, err := t.handle(ctx, profile)
	if err != nil {
		return nil, err
	}
	if t.cfg.ModelTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.cfg.ModelTimeoutSec)*time.Second)
		defer cancel()
	}
	return m.Generate(ctx, messages)
}

// generateWithTools runs one model turn with a toolset bound.
func (t *Team) generateWithTools(ctx context.Context, profile llm.Profile, infos []*schema.ToolInfo, messages []*schema.Message) (*schema.Message, error) {
	m, err := t.handle(ctx, profile)
	if err != nil {
		return nil, err
	}
	if len(infos) > 0 {
		m, err = m.WithTools(infos)
		if err != nil {
			return nil, err
		}
	}
	if t.cfg.ModelTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.cfg.ModelTimeoutSec)*time.Second)
		defer cancel()
	}
	return m.Generate(ctx, messages)
}
