package graph

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tradingagents/consts"
	"tradingagents/internal/agents"
	"tradingagents/internal/models"
)

// ParallelExecutor runs the selected analysts concurrently, each on an
// isolated deep copy of the state, and merges the disjoint report
// slots back with a diagnostics block.
type ParallelExecutor struct {
	team       *agents.Team
	maxWorkers int
	timeout    time.Duration
	log        *logrus.Entry
}

func NewParallelExecutor(team *agents.Team, maxWorkers, timeoutSec int) *ParallelExecutor {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if timeoutSec <= 0 {
		timeoutSec = 300
	}
	return &ParallelExecutor{
		team:       team,
		maxWorkers: maxWorkers,
		timeout:    time.Duration(timeoutSec) * time.Second,
		log:        logrus.WithField("component", "parallel_executor"),
	}
}

type roleResult struct {
	role     string
	update   *models.StateUpdate
	duration time.Duration
	err      error
}

// Node adapts the executor to a graph node over the given roles.
func (e *ParallelExecutor) Node(roles []string) agents.Node {
	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		return e.Run(ctx, state, roles)
	}
}

// Run fans the roles out over the worker pool. A role that fails or
// times out degrades to a failure report; only parent cancellation
// aborts the whole phase.
func (e *ParallelExecutor) Run(ctx context.Context, state *models.AgentState, roles []string) (*models.StateUpdate, error) {
	started := time.Now()
	resCh := make(chan roleResult, len(roles))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)
	for _, role := range roles {
		wg.Add(1)
		sem <- struct{}{}
		go func(role string) {
			defer wg.Done()
			defer func() { <-sem }()
			resCh <- e.runRole(ctx, state, role)
		}(role)
	}
	wg.Wait()
	close(resCh)

	// completion order: branch messages concatenate in the order the
	// roles finished, and the last finisher's sender wins
	var results []roleResult
	for res := range resCh {
		results = append(results, res)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := &models.StateUpdate{Sender: consts.ParallelAnalysts}
	perf := &models.ParallelPerformance{
		PerRole:    make(map[string]models.RoleTiming, len(results)),
		DurationMS: time.Since(started).Milliseconds(),
	}

	successes := 0
	for _, res := range results {
		if res.update != nil {
			merged.Messages = append(merged.Messages, res.update.Messages...)
			if res.update.Sender != "" {
				merged.Sender = res.update.Sender
			}
		}
		report := e.mergeRole(merged, res)
		timing := models.RoleTiming{
			DurationMS:   res.duration.Milliseconds(),
			Success:      res.err == nil,
			ReportLength: len(report),
		}
		if res.err != nil {
			timing.Error = res.err.Error()
		} else {
			successes++
		}
		perf.PerRole[res.role] = timing
	}
	if len(results) > 0 {
		perf.SuccessRate = float64(successes) / float64(len(results))
	}
	merged.ParallelPerformance = perf

	e.log.WithFields(logrus.Fields{
		"roles":        len(roles),
		"success_rate": perf.SuccessRate,
		"duration_ms":  perf.DurationMS,
	}).Info("parallel analyst phase done")
	return merged, nil
}

// runRole executes one analyst on a deep copy under the role timeout.
func (e *ParallelExecutor) runRole(ctx context.Context, state *models.AgentState, role string) roleResult {
	roleCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	branch := state.DeepCopy()
	update, err := e.team.Analyst(role)(roleCtx, branch)
	return roleResult{
		role:     role,
		update:   update,
		duration: time.Since(started),
		err:      err,
	}
}

// mergeRole folds one role's report slot into the merged update and
// returns the report text. Slots are disjoint across roles, so the
// merge never overwrites. Failed roles get an explanatory report.
func (e *ParallelExecutor) mergeRole(merged *models.StateUpdate, res roleResult) string {
	var report *string
	if res.update != nil {
		switch res.role {
		case consts.RoleMarket:
			report = res.update.MarketReport
		case consts.RoleSocial:
			report = res.update.SentimentReport
		case consts.RoleNews:
			report = res.update.NewsReport
		case consts.RoleFundamentals:
			report = res.update.FundamentalsReport
		}
	}
	if report == nil {
		reason := "no report produced"
		if res.err != nil {
			reason = res.err.Error()
		}
		report = models.Str(res.role + " analysis failed: " + reason)
	}

	switch res.role {
	case consts.RoleMarket:
		merged.MarketReport = report
	case consts.RoleSocial:
		merged.SentimentReport = report
	case consts.RoleNews:
		merged.NewsReport = report
	case consts.RoleFundamentals:
		merged.FundamentalsReport = report
	}
	return *report
}
