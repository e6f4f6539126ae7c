// Package graph wires the agent nodes into the analysis workflow and
// drives a run from ticker to decision.
package graph

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tradingagents/internal/agents"
	"tradingagents/internal/models"
)

// End is the router target that stops the run.
const End = "__end__"

// GraphStuckError reports a run that hit the recursion limit without
// reaching End.
type GraphStuckError struct {
	Steps int
	Node  string
}

func (e *GraphStuckError) Error() string {
	return fmt.Sprintf("workflow stuck after %d steps at node %s", e.Steps, e.Node)
}

// Router picks the next node after an update has been folded in.
type Router func(state *models.AgentState) string

type graphNode struct {
	run  agents.Node
	next Router
}

// StateGraph is a sequential driver over named nodes. Each step runs
// one node, folds its update into the shared state and routes onward.
type StateGraph struct {
	nodes    map[string]graphNode
	entry    string
	maxSteps int
	log      *logrus.Entry
}

func NewStateGraph(maxSteps int) *StateGraph {
	if maxSteps <= 0 {
		maxSteps = 100
	}
	return &StateGraph{
		nodes:    make(map[string]graphNode),
		maxSteps: maxSteps,
		log:      logrus.WithField("component", "graph"),
	}
}

// AddNode registers a node and its router. StaticNext covers plain
// edges.
func (g *StateGraph) AddNode(name string, run agents.Node, next Router) *StateGraph {
	g.nodes[name] = graphNode{run: run, next: next}
	return g
}

func (g *StateGraph) SetEntry(name string) *StateGraph {
	g.entry = name
	return g
}

// StaticNext routes unconditionally to one node.
func StaticNext(name string) Router {
	return func(*models.AgentState) string { return name }
}

// Run drives the state through the graph until End. Cancellation is
// checked between nodes; exceeding the step limit is a stuck error.
func (g *StateGraph) Run(ctx context.Context, state *models.AgentState) error {
	current := g.entry
	for steps := 0; ; steps++ {
		if current == End {
			return nil
		}
		if steps >= g.maxSteps {
			return &GraphStuckError{Steps: steps, Node: current}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		node, ok := g.nodes[current]
		if !ok {
			return fmt.Errorf("workflow routed to unknown node %q", current)
		}

		g.log.WithField("node", current).Debug("running node")
		update, err := node.run(ctx, state)
		if err != nil {
			return fmt.Errorf("node %s: %w", current, err)
		}
		state.Apply(update)
		current = node.next(state)
	}
}
