package di

import (
	"github.com/xraph/anvil/internal/errors"
)

// DependencyGraph manages component dependencies.
type DependencyGraph struct {
	nodes map[string]*node
	order []string // Preserve registration order
}

type node struct {
	name         string
	dependencies []string
}

// NewDependencyGraph creates a new dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*node),
		order: make([]string, 0),
	}
}

// AddNode adds a node with its dependencies.
// Nodes are processed in the order they are added (FIFO) when no dependencies exist.
func (g *DependencyGraph) AddNode(name string, dependencies []string) {
	if _, exists := g.nodes[name]; !exists {
		g.order = append(g.order, name)
	}
	g.nodes[name] = &node{
		name:         name,
		dependencies: dependencies,
	}
}

// Dependencies returns the recorded edges of name.
func (g *DependencyGraph) Dependencies(name string) []string {
	if n, ok := g.nodes[name]; ok {
		return n.dependencies
	}
	return nil
}

// TopologicalSort returns nodes in dependency order.
// Nodes without dependencies maintain their registration order (FIFO).
// Returns a CircularDependency error carrying the full cycle path.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	visited := make(map[string]bool)
	result := make([]string, 0, len(g.nodes))

	for _, name := range g.order {
		var path []string
		if err := g.visit(name, visited, &path, &result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// visit performs DFS traversal. path holds the nodes currently being visited.
func (g *DependencyGraph) visit(name string, visited map[string]bool, path *[]string, result *[]string) error {
	if visited[name] {
		return nil
	}

	for i, p := range *path {
		if p == name {
			cycle := append(append([]string{}, (*path)[i:]...), name)
			return errors.ErrCircularDependency(cycle)
		}
	}

	node := g.nodes[name]
	if node == nil {
		// unknown names are reported by Validate, not here
		return nil
	}

	*path = append(*path, name)
	for _, dep := range node.dependencies {
		if err := g.visit(dep, visited, path, result); err != nil {
			return err
		}
	}
	*path = (*path)[:len(*path)-1]

	visited[name] = true
	*result = append(*result, name)

	return nil
}

// Validate checks that every edge points at a known node and that the graph
// is acyclic.
func (g *DependencyGraph) Validate() error {
	return g.ValidateFrom(g.order...)
}

// ValidateFrom checks only the part of the graph reachable from roots. Nodes
// no root depends on are left for resolution time to report.
func (g *DependencyGraph) ValidateFrom(roots ...string) error {
	seen := make(map[string]bool)
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true

		n, ok := g.nodes[name]
		if !ok {
			continue
		}
		for _, dep := range n.dependencies {
			if _, ok := g.nodes[dep]; !ok {
				return errors.ErrMissingDependency(name, dep, errors.ErrComponentNotFound(dep))
			}
			queue = append(queue, dep)
		}
	}

	visited := make(map[string]bool)
	var result []string
	for _, name := range roots {
		var path []string
		if err := g.visit(name, visited, &path, &result); err != nil {
			return err
		}
	}
	return nil
}
