package pipeline

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/samber/lo"
)

// Strategy selects the order in which nodes are executed.
type Strategy string

const (
	// StrategyKahn executes nodes in breadth-first topological order.
	StrategyKahn Strategy = "kahn"
	// StrategyDFS executes nodes in depth-first topological order.
	StrategyDFS Strategy = "dfs"
)

// DefaultStrategy is used when the caller does not pick one.
const DefaultStrategy = StrategyKahn

// Label returns the human-readable description of the strategy used in
// execution summaries.
func (s Strategy) Label() string {
	switch s {
	case StrategyKahn:
		return "breadth-first topological (Kahn)"
	case StrategyDFS:
		return "depth-first topological (DFS postorder)"
	default:
		return string(s)
	}
}

// NodeEvent describes a single node execution and is delivered to the
// observer after the node ran. Err is set when the node failed; Output is
// only valid when Err is nil.
type NodeEvent struct {
	NodeID       string
	Node         *Node
	Input        Input
	Output       Value
	Duration     time.Duration
	Predecessors []string
	Err          error
}

// Observer receives one event per executed node, in execution order.
type Observer func(NodeEvent)

// Result holds the outcome of a completed execution.
type Result struct {
	Graph         *Graph
	Order         []string
	Outputs       map[string]Value
	Sources       []string
	Sinks         []string
	StrategyLabel string
}

type execConfig struct {
	strategy  Strategy
	registry  *Registry
	observer  Observer
	paceMin   time.Duration
	paceMax   time.Duration
	stopCheck func() bool
}

// Option customizes a single Execute call.
type Option func(*execConfig)

// WithStrategy selects the execution order strategy.
func WithStrategy(s Strategy) Option {
	return func(cfg *execConfig) {
		if s != "" {
			cfg.strategy = s
		}
	}
}

// WithRegistry substitutes the node kind registry. Useful for tests and for
// callers that register custom kinds.
func WithRegistry(r *Registry) Option {
	return func(cfg *execConfig) {
		if r != nil {
			cfg.registry = r
		}
	}
}

// WithObserver installs a per-node callback.
func WithObserver(fn Observer) Option {
	return func(cfg *execConfig) { cfg.observer = fn }
}

// WithPacing sleeps a uniformly random duration in [min, max] before each
// node, simulating real computation time. Zero max disables pacing.
func WithPacing(min, max time.Duration) Option {
	return func(cfg *execConfig) {
		cfg.paceMin = min
		cfg.paceMax = max
	}
}

// WithStopCheck installs a cancellation probe consulted before each node.
// When it reports true the execution aborts with ErrStopped.
func WithStopCheck(fn func() bool) Option {
	return func(cfg *execConfig) { cfg.stopCheck = fn }
}

// Execute validates the canonical graph, derives the node order for the
// configured strategy and runs every node, wiring predecessor outputs into
// successor inputs. The first node error aborts the run after the observer
// has seen the failure event.
func Execute(canonical CanonicalGraph, opts ...Option) (*Result, error) {
	cfg := execConfig{strategy: DefaultStrategy, registry: DefaultRegistry()}
	for _, opt := range opts {
		opt(&cfg)
	}

	g, err := build(canonical, cfg.registry)
	if err != nil {
		return nil, err
	}

	var order []string
	switch cfg.strategy {
	case StrategyKahn:
		order = g.kahnOrder()
	case StrategyDFS:
		order = g.dfsOrder()
	default:
		return nil, errorf("Unknown execution strategy: %s", cfg.strategy)
	}

	outputs := make(map[string]Value, len(order))
	for _, id := range order {
		if cfg.stopCheck != nil && cfg.stopCheck() {
			return nil, fmt.Errorf("aborted before node '%s': %w", id, ErrStopped)
		}
		pace(cfg.paceMin, cfg.paceMax)

		node := g.Node(id)
		preds := g.Predecessors(id)
		input := gatherInput(outputs, preds)

		if err := node.Kind.ValidateArity(len(preds), id); err != nil {
			return nil, err
		}

		started := time.Now()
		out, err := node.Kind.Fn(input, node.Params)
		elapsed := time.Since(started)

		if cfg.observer != nil {
			cfg.observer(NodeEvent{
				NodeID:       id,
				Node:         node,
				Input:        input,
				Output:       out,
				Duration:     elapsed,
				Predecessors: preds,
				Err:          err,
			})
		}
		if err != nil {
			return nil, err
		}
		outputs[id] = out
	}

	return &Result{
		Graph:         g,
		Order:         order,
		Outputs:       outputs,
		Sources:       g.Sources(),
		Sinks:         g.Sinks(),
		StrategyLabel: cfg.strategy.Label(),
	}, nil
}

// Run normalizes a raw graph payload, executes it and produces the summary
// in one step.
func Run(payload map[string]any, opts ...Option) (*Result, map[string]any, error) {
	canonical, err := Normalize(payload)
	if err != nil {
		return nil, nil, err
	}
	return RunCanonical(canonical, opts...)
}

// RunCanonical executes an already normalized graph and produces the summary.
// Callers holding a cached canonical form use this instead of Run.
func RunCanonical(canonical CanonicalGraph, opts ...Option) (*Result, map[string]any, error) {
	result, err := Execute(canonical, opts...)
	if err != nil {
		return nil, nil, err
	}
	return result, Summarize(result), nil
}

// gatherInput assembles the input for a node from its predecessor outputs.
// Zero predecessors yield no input, one yields the bare value and two or
// more yield an ordered list.
func gatherInput(outputs map[string]Value, preds []string) Input {
	switch len(preds) {
	case 0:
		return NoInput()
	case 1:
		return SingleInput(outputs[preds[0]])
	default:
		return ListInput(lo.Map(preds, func(p string, _ int) Value {
			return outputs[p]
		}))
	}
}

func pace(min, max time.Duration) {
	if max <= 0 || max < min {
		return
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int64N(int64(span) + 1))
	}
	time.Sleep(d)
}
