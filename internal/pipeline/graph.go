package pipeline

import (
	"strings"

	"github.com/samber/lo"
)

// Node is a single executable node instance bound to its kind.
type Node struct {
	ID          string
	Kind        *Kind
	Params      map[string]any
	TrackOutput bool
}

// Graph is a validated directed acyclic graph ready for execution. Node and
// edge iteration follow insertion order.
type Graph struct {
	order []string
	nodes map[string]*Node
	succ  map[string][]string
	pred  map[string][]string
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// NodeIDs returns all node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	return g.order
}

// Node returns the node instance for id.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Predecessors returns the distinct upstream node ids in edge insertion
// order. Parallel duplicate edges contribute a single slot.
func (g *Graph) Predecessors(id string) []string {
	return g.pred[id]
}

// Successors returns the distinct downstream node ids in edge insertion order.
func (g *Graph) Successors(id string) []string {
	return g.succ[id]
}

// Sources returns the nodes with no incoming edges, in insertion order.
func (g *Graph) Sources() []string {
	var sources []string
	for _, id := range g.order {
		if len(g.pred[id]) == 0 {
			sources = append(sources, id)
		}
	}
	return sources
}

// Sinks returns the nodes with no outgoing edges, in insertion order.
func (g *Graph) Sinks() []string {
	var sinks []string
	for _, id := range g.order {
		if len(g.succ[id]) == 0 {
			sinks = append(sinks, id)
		}
	}
	return sinks
}

// build constructs and validates a Graph from the canonical form. Failures
// surface in a fixed order: duplicate ids, unknown kinds, dangling edges,
// cycles, arity violations, empty graph, missing sinks.
func build(canonical CanonicalGraph, registry *Registry) (*Graph, error) {
	g := &Graph{
		nodes: map[string]*Node{},
		succ:  map[string][]string{},
		pred:  map[string][]string{},
	}

	for _, n := range canonical.Nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return nil, errorf("Duplicate node ids in simplified graph.")
		}
		g.nodes[n.ID] = &Node{ID: n.ID, Params: n.Params, TrackOutput: n.TrackOutput}
		g.order = append(g.order, n.ID)
	}

	for _, id := range g.order {
		kindName := canonicalKind(canonical, id)
		if kindName == "" {
			return nil, errorf("Node '%s' is missing 'kind'.", id)
		}
		kind, ok := registry.Lookup(kindName)
		if !ok {
			return nil, errorf("Node '%s' has unknown kind '%s'.", id, kindName)
		}
		g.nodes[id].Kind = kind
	}

	edgeSeen := map[CanonicalEdge]struct{}{}
	for _, e := range canonical.Edges {
		if _, ok := g.nodes[e.Source]; !ok {
			return nil, errorf("Edge refers to missing node: %s -> %s", e.Source, e.Target)
		}
		if _, ok := g.nodes[e.Target]; !ok {
			return nil, errorf("Edge refers to missing node: %s -> %s", e.Source, e.Target)
		}
		if _, dup := edgeSeen[e]; dup {
			continue
		}
		edgeSeen[e] = struct{}{}
		g.succ[e.Source] = append(g.succ[e.Source], e.Target)
		g.pred[e.Target] = append(g.pred[e.Target], e.Source)
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, errorf("Pipeline must be a DAG. Found cycle: %s", strings.Join(cycle, " -> "))
	}

	for _, id := range g.order {
		node := g.nodes[id]
		if err := node.Kind.ValidateArity(len(g.pred[id]), id); err != nil {
			return nil, err
		}
	}

	if len(g.order) == 0 {
		return nil, errorf("Graph is empty.")
	}
	if len(g.Sinks()) == 0 {
		return nil, errorf("Graph has no terminal (sink) nodes.")
	}
	return g, nil
}

// Validate builds the canonical graph against the built-in kinds and returns
// the first structural failure, or nil when the graph is executable.
func Validate(canonical CanonicalGraph) error {
	_, err := build(canonical, DefaultRegistry())
	return err
}

func canonicalKind(canonical CanonicalGraph, id string) string {
	for _, n := range canonical.Nodes {
		if n.ID == id {
			return n.Kind
		}
	}
	return ""
}

// findCycle runs a depth-first search and returns one offending cycle as a
// node path ending where it began, or nil when the graph is acyclic.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := map[string]int{}
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, next := range g.succ[id] {
			switch color[next] {
			case gray:
				start := 0
				for i, p := range path {
					if p == next {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), next)
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// kahnOrder derives a breadth-first topological order: repeatedly remove a
// node with no remaining predecessors, ties broken by insertion order.
func (g *Graph) kahnOrder() []string {
	indegree := map[string]int{}
	for _, id := range g.order {
		indegree[id] = len(g.pred[id])
	}
	var queue []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	order := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range g.succ[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}

// dfsOrder derives a topological order as the reverse post-order of a
// depth-first forest rooted at the sources in insertion order, then any
// remaining unreached node.
func (g *Graph) dfsOrder() []string {
	visited := map[string]bool{}
	postorder := make([]string, 0, len(g.order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, next := range g.succ[id] {
			visit(next)
		}
		postorder = append(postorder, id)
	}

	for _, src := range g.Sources() {
		visit(src)
	}
	for _, id := range g.order {
		visit(id)
	}
	return lo.Reverse(postorder)
}
