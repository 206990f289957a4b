// Package callgraph models the call-graph output of spec §6.2: a mapping
// from caller node to the set of callee nodes it was observed (or failed)
// to reach.
package callgraph

import (
	"fmt"
	"sort"
)

// NodeKind distinguishes the four caller/callee shapes spec §6.2 names.
type NodeKind int

const (
	KindFakeRoot NodeKind = iota
	KindFile
	KindFunction
	KindMethod
)

// Node identifies one caller or callee in the graph.
type Node struct {
	Kind      NodeKind
	Name      string // function name, or file path for KindFile
	ClassName string // set only for KindMethod
}

// FakeRoot is the synthetic caller seeded above every top-level definition
// when the driver's extract_paths option is set (§4.F, GLOSSARY).
func FakeRoot() Node { return Node{Kind: KindFakeRoot} }

// File names the toplevel-statement caller for a given analyzed file.
func File(path string) Node { return Node{Kind: KindFile, Name: path} }

// Function names a free-function caller or callee.
func Function(name string) Node { return Node{Kind: KindFunction, Name: name} }

// Method names a method caller or callee.
func Method(class, name string) Node { return Node{Kind: KindMethod, ClassName: class, Name: name} }

// String renders a node in the "Function:<name>" / "Method:<class>::<name>"
// form spec §6.2 requires for serialization.
func (n Node) String() string {
	switch n.Kind {
	case KindFakeRoot:
		return "FakeRoot"
	case KindFile:
		return fmt.Sprintf("File:%s", n.Name)
	case KindFunction:
		return fmt.Sprintf("Function:%s", n.Name)
	case KindMethod:
		return fmt.Sprintf("Method:%s::%s", n.ClassName, n.Name)
	default:
		return "Unknown"
	}
}

// Graph accumulates caller -> callee-set edges.
type Graph struct {
	edges map[Node]map[Node]struct{}
}

// New returns an empty call graph.
func New() *Graph {
	return &Graph{edges: make(map[Node]map[Node]struct{})}
}

// AddEdge records that caller was observed to reach (or attempt to reach)
// callee. Edges are added whether or not the target actually resolved
// (§6.2): callers pass a stringified fallback node for unresolved targets.
func (g *Graph) AddEdge(caller, callee Node) {
	set, ok := g.edges[caller]
	if !ok {
		set = make(map[Node]struct{})
		g.edges[caller] = set
	}
	set[callee] = struct{}{}
}

// Callees returns the callees recorded for caller, in deterministic order.
func (g *Graph) Callees(caller Node) []Node {
	set := g.edges[caller]
	out := make([]Node, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sortNodes(out)
	return out
}

// Callers returns every node with at least one recorded edge, in
// deterministic order.
func (g *Graph) Callers() []Node {
	out := make([]Node, 0, len(g.edges))
	for n := range g.edges {
		out = append(out, n)
	}
	sortNodes(out)
	return out
}

// Merge folds other's edges into g, for combining the per-file graphs a
// multi-file corpus analysis produces (SPEC_FULL.md §3.1).
func (g *Graph) Merge(other *Graph) {
	for caller, callees := range other.edges {
		for callee := range callees {
			g.AddEdge(caller, callee)
		}
	}
}

// Lines renders every edge as "<caller> -> <callee>", sorted, for stable
// textual output.
func (g *Graph) Lines() []string {
	var out []string
	for _, caller := range g.Callers() {
		for _, callee := range g.Callees(caller) {
			out = append(out, fmt.Sprintf("%s -> %s", caller, callee))
		}
	}
	return out
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].String() < nodes[j].String()
	})
}
