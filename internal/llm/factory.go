// Package llm constructs tool-calling chat models for the configured
// provider. Agents obtain handles through the factory instead of
// holding a process-global model.
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"tradingagents/internal/config"
)

// Profile selects the configured model tier.
type Profile string

const (
	DeepThink  Profile = "deep"
	QuickThink Profile = "quick"
)

const defaultMaxTokens = 8192

type Factory struct {
	cfg *config.Config
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// New builds a chat model for the profile. Callers that bind tools
// should check FreshHandlePerInvoke first.
func (f *Factory) New(ctx context.Context, profile Profile) (model.ToolCallingChatModel, error) {
	name := f.cfg.DeepThinkLLM
	if profile == QuickThink {
		name = f.cfg.QuickThinkLLM
	}
	switch f.cfg.LLMProvider {
	case "deepseek":
		return f.newDeepSeek(ctx, name)
	case "openai", "":
		return f.newOpenAI(ctx, name)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", f.cfg.LLMProvider)
	}
}

// FreshHandlePerInvoke reports whether the provider's handles carry
// tool-binding state across invocations. DeepSeek handles cache bound
// tools, so each model turn needs a newly built handle to avoid one
// run's toolset leaking into the next.
func (f *Factory) FreshHandlePerInvoke() bool {
	return f.cfg.LLMProvider == "deepseek"
}

func (f *Factory) newOpenAI(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
	maxTokens := defaultMaxTokens
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:   f.cfg.BackendURL,
		APIKey:    f.cfg.OpenAIAPIKey,
		Model:     name,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai model %s: %w", name, err)
	}
	return chatModel, nil
}

func (f *Factory) newDeepSeek(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
	chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:    f.cfg.DeepSeekKey,
		Model:     name,
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create deepseek model %s: %w", name, err)
	}
	return chatModel, nil
}
