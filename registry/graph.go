//
// Copyright (C) 2026 ToolMesh Authors. All rights reserved.
//
// toolmesh is licensed under the Apache License Version 2.0.
//

package registry

import "sort"

// GraphNode identifies a dependency-graph node by kind, name, and version.
type GraphNode struct {
	Kind    EntityKind
	Name    string
	Version string
}

// String renders the node as "kind:name@version".
func (n GraphNode) String() string {
	return entityRef(n.Kind, n.Name, n.Version)
}

// DependencyGraph is a directed graph over registry entities where an edge
// A -> B means "A depends on B". It is built during compilation from explicit
// depends declarations and implicit source-tool -> server references, used
// for cycle detection, and discarded afterwards.
type DependencyGraph struct {
	nodes map[GraphNode]struct{}
	edges map[GraphNode]map[GraphNode]struct{}
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[GraphNode]struct{}),
		edges: make(map[GraphNode]map[GraphNode]struct{}),
	}
}

// AddNode registers a node without edges.
func (g *DependencyGraph) AddNode(n GraphNode) {
	g.nodes[n] = struct{}{}
}

// AddEdge records "from depends on to", registering both nodes.
func (g *DependencyGraph) AddEdge(from, to GraphNode) {
	g.AddNode(from)
	g.AddNode(to)
	set, ok := g.edges[from]
	if !ok {
		set = make(map[GraphNode]struct{})
		g.edges[from] = set
	}
	set[to] = struct{}{}
}

// dfs colors.
const (
	colorWhite = iota
	colorGray
	colorBlack
)

// FindCycles returns every dependency cycle reachable in the graph. Each
// cycle is reported once, closed on its starting node (the first node is
// repeated at the end). Results are deterministic across runs.
func (g *DependencyGraph) FindCycles() [][]GraphNode {
	color := make(map[GraphNode]int, len(g.nodes))
	var stack []GraphNode
	var cycles [][]GraphNode

	var visit func(n GraphNode)
	visit = func(n GraphNode) {
		color[n] = colorGray
		stack = append(stack, n)

		for _, next := range g.sortedNeighbors(n) {
			switch color[next] {
			case colorWhite:
				visit(next)
			case colorGray:
				// Back edge: the cycle is the stack suffix starting at next.
				start := len(stack) - 1
				for start >= 0 && stack[start] != next {
					start--
				}
				if start >= 0 {
					cycle := make([]GraphNode, 0, len(stack)-start+1)
					cycle = append(cycle, stack[start:]...)
					cycle = append(cycle, next)
					cycles = append(cycles, cycle)
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[n] = colorBlack
	}

	for _, n := range g.sortedNodes() {
		if color[n] == colorWhite {
			visit(n)
		}
	}
	return cycles
}

func (g *DependencyGraph) sortedNodes() []GraphNode {
	nodes := make([]GraphNode, 0, len(g.nodes))
	for n := range g.nodes {
		nodes = append(nodes, n)
	}
	sortNodes(nodes)
	return nodes
}

func (g *DependencyGraph) sortedNeighbors(n GraphNode) []GraphNode {
	set := g.edges[n]
	if len(set) == 0 {
		return nil
	}
	neighbors := make([]GraphNode, 0, len(set))
	for next := range set {
		neighbors = append(neighbors, next)
	}
	sortNodes(neighbors)
	return neighbors
}

func sortNodes(nodes []GraphNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].String() < nodes[j].String()
	})
}
