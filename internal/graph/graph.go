// Package graph holds the section dependency graph of a document and orders
// it for generation.
package graph

import (
	"fmt"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// Graph is a directed graph over node ids. An edge from a node to one of its
// dependencies means the node must come after that dependency. Nodes keep
// insertion order, which breaks ties in Order.
type Graph struct {
	ids        []string
	index      map[string]int
	deps       map[string][]string
	dependents map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index:      make(map[string]int),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// AddNode adds id. Adding an existing id does nothing.
func (g *Graph) AddNode(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.ids)
	g.ids = append(g.ids, id)
}

// AddEdge records that id depends on dependsOn. id must already be a node.
// dependsOn may lie outside the node set; such an edge is kept as a
// dependency but never constrains the order.
func (g *Graph) AddEdge(id, dependsOn string) error {
	if id == dependsOn {
		return fmt.Errorf("edge %s -> %s: %w", id, dependsOn, types.ErrSelfDependency)
	}
	if _, ok := g.index[id]; !ok {
		return fmt.Errorf("edge %s -> %s: node %s: %w", id, dependsOn, id, types.ErrNotFound)
	}
	for _, d := range g.deps[id] {
		if d == dependsOn {
			return nil
		}
	}
	g.deps[id] = append(g.deps[id], dependsOn)
	g.dependents[dependsOn] = append(g.dependents[dependsOn], id)
	return nil
}

// Nodes returns the node ids in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Has reports whether id is a node.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Dependencies returns the ids id depends on, in the order they were added.
func (g *Graph) Dependencies(id string) []string {
	out := make([]string, len(g.deps[id]))
	copy(out, g.deps[id])
	return out
}

// Order returns a topological order using Kahn's algorithm. Nodes with equal
// standing come out in insertion order, so the result is reproducible.
// Returns ErrCyclicDependency when some nodes cannot be ordered.
func (g *Graph) Order() ([]string, error) {
	inDegree := make(map[string]int, len(g.ids))
	for _, id := range g.ids {
		for _, d := range g.deps[id] {
			if g.Has(d) {
				inDegree[id]++
			}
		}
	}

	queue := make([]string, 0, len(g.ids))
	for _, id := range g.ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range g.successors(id) {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < len(g.ids) {
		var stuck []string
		for _, id := range g.ids {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("ordering %d nodes, unresolved %v: %w", len(g.ids), stuck, types.ErrCyclicDependency)
	}
	return order, nil
}

// successors returns the dependents of id in insertion order.
func (g *Graph) successors(id string) []string {
	ds := g.dependents[id]
	out := make([]string, 0, len(ds))
	seen := make(map[string]bool, len(ds))
	for _, n := range g.ids {
		for _, d := range ds {
			if d == n && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// Reaches reports whether from depends on to, directly or transitively.
func (g *Graph) Reaches(from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range g.deps[id] {
			if d == to {
				return true
			}
			if !seen[d] {
				seen[d] = true
				stack = append(stack, d)
			}
		}
	}
	return false
}
