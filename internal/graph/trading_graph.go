package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tradingagents/consts"
	"tradingagents/internal/agents"
	"tradingagents/internal/cache"
	"tradingagents/internal/config"
	"tradingagents/internal/dataflows"
	"tradingagents/internal/llm"
	"tradingagents/internal/market"
	"tradingagents/internal/models"
	"tradingagents/internal/processing"
	"tradingagents/internal/resilience"
	"tradingagents/internal/tools"
)

// TradingAgentsGraph is the top-level facade: it owns the data layer,
// the tool registry and the agent team, and runs one analysis per call.
type TradingAgentsGraph struct {
	cfg       *config.Config
	cacheMgr  *cache.Manager
	data      *dataflows.Registry
	tools     *tools.Registry
	processor *processing.SignalProcessor
	log       *logrus.Entry
}

func NewTradingAgentsGraph(cfg *config.Config) (*TradingAgentsGraph, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	cacheMgr, err := buildCacheManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}

	robust := resilience.NewHandler(resilience.DefaultBreakerConfig())
	data := dataflows.NewDefaultRegistry(cacheMgr, robust, cfg)

	registry := tools.NewRegistry()
	if err := tools.RegisterMarketTools(registry, data, cfg); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	return &TradingAgentsGraph{
		cfg:       cfg,
		cacheMgr:  cacheMgr,
		data:      data,
		tools:     registry,
		processor: processing.NewSignalProcessor(),
		log:       logrus.WithField("component", "trading_graph"),
	}, nil
}

// Config returns the graph's base configuration.
func (g *TradingAgentsGraph) Config() *config.Config { return g.cfg }

// Cache exposes the cache manager for stats surfaces.
func (g *TradingAgentsGraph) Cache() *cache.Manager { return g.cacheMgr }

// StartMaintenance launches the cache sweep loops; they stop with ctx.
func (g *TradingAgentsGraph) StartMaintenance(ctx context.Context) {
	g.cacheMgr.StartSweeps(ctx, 5*time.Minute, time.Hour)
}

// RunAnalysis drives one full run: analyst phase, debate, trade
// proposal, risk review and the final decision envelope. analysts
// defaults to all four roles; researchDepth is clamped to 1..5.
func (g *TradingAgentsGraph) RunAnalysis(ctx context.Context, ticker, tradeDate string, analysts []string, researchDepth int) (*models.AgentState, *models.Decision, error) {
	cls, err := market.Classify(ticker)
	if err != nil {
		return nil, nil, err
	}
	if _, err := time.Parse("2006-01-02", tradeDate); err != nil {
		return nil, nil, fmt.Errorf("invalid trade date %q: want YYYY-MM-DD", tradeDate)
	}
	if len(analysts) == 0 {
		analysts = consts.AllRoles
	}

	runCfg := *g.cfg
	runCfg.ApplyResearchDepth(researchDepth)

	team := agents.NewTeam(&runCfg, llm.NewFactory(&runCfg), g.tools)
	workflow, err := NewBuilder(&runCfg, team).Build(analysts)
	if err != nil {
		return nil, nil, err
	}

	g.log.WithFields(logrus.Fields{
		"ticker":   cls.Normalized,
		"market":   cls.Market,
		"date":     tradeDate,
		"analysts": analysts,
		"depth":    researchDepth,
		"parallel": runCfg.ParallelAnalysts,
	}).Info("starting analysis run")

	state := models.NewAgentState(cls.Normalized, tradeDate)
	if err := workflow.Run(ctx, state); err != nil {
		return nil, nil, err
	}

	decision := g.processor.Process(cls.Normalized, tradeDate, state.FinalTradeDecision)
	g.log.WithFields(logrus.Fields{
		"ticker": cls.Normalized,
		"action": decision.Action,
	}).Info("analysis run complete")
	return state, decision, nil
}

func buildCacheManager(cfg *config.Config) (*cache.Manager, error) {
	primary, err := buildCacheBackend(cfg, cfg.Cache.PrimaryBackend)
	if err != nil {
		return nil, err
	}
	var fallbacks []cache.Backend
	for _, name := range cfg.Cache.FallbackBackends {
		b, err := buildCacheBackend(cfg, name)
		if err != nil {
			logrus.WithError(err).WithField("backend", name).Warn("skipping cache fallback backend")
			continue
		}
		fallbacks = append(fallbacks, b)
	}
	return cache.NewManager(primary, fallbacks, cfg.Cache), nil
}

func buildCacheBackend(cfg *config.Config, name string) (cache.Backend, error) {
	switch name {
	case "memory", "":
		return cache.NewMemoryBackend(cfg.Cache.MemoryMaxSize), nil
	case "file":
		return cache.NewFileBackend(cfg.Cache.FileCacheDir)
	case "redis":
		b := cache.NewRedisBackend(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := b.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Cache.RedisAddr, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", name)
	}
}
